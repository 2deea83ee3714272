package handler

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-novel-orchestrator/internal/application/generation"
	"z-novel-orchestrator/internal/application/progress"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/infrastructure/agent"
	redisinfra "z-novel-orchestrator/internal/infrastructure/persistence/redis"
	"z-novel-orchestrator/internal/interfaces/http/dto"
	"z-novel-orchestrator/pkg/errors"
	"z-novel-orchestrator/pkg/logger"
)

// jobStatusCacheTTL 任务状态缓存时间
// 任务进度变化频繁，缓存仅用于挡住轮询洪峰
const jobStatusCacheTTL = 2 * time.Second

// GenerationHandler 生成任务处理器
type GenerationHandler struct {
	projects  repository.ProjectRepository
	jobs      repository.JobRepository
	scheduler *generation.Scheduler
	registry  *agent.Registry
	bus       *progress.Bus
	cache     *redisinfra.Cache
}

// NewGenerationHandler 创建生成任务处理器
func NewGenerationHandler(
	projects repository.ProjectRepository,
	jobs repository.JobRepository,
	scheduler *generation.Scheduler,
	registry *agent.Registry,
	bus *progress.Bus,
	cache *redisinfra.Cache,
) *GenerationHandler {
	return &GenerationHandler{
		projects:  projects,
		jobs:      jobs,
		scheduler: scheduler,
		registry:  registry,
		bus:       bus,
		cache:     cache,
	}
}

// Start 发起项目生成
// POST /v1/projects/:pid/generation
//
// 调度器放行后才持久化任务记录，保证同项目活跃任务检查不会命中自身
func (h *GenerationHandler) Start(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req dto.StartGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		writeError(c, errors.ErrInvalidParam.WithError(err))
		return
	}

	ctx := c.Request.Context()
	project, err := h.projects.GetByID(ctx, projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	if project == nil {
		writeError(c, errors.ErrProjectNotFound)
		return
	}

	if !project.IsStartable() {
		writeError(c, errors.ErrConflict.WithDetail(
			"project status does not allow generation: "+string(project.Status)))
		return
	}

	// writer 角色缺失时同步拒绝，而不是入队后异步失败
	if !h.registry.Has(entity.RoleWriter) {
		writeError(c, errors.ErrMissingCapability.WithDetail(
			"writer role is required to start generation"))
		return
	}

	inputParams, _ := json.Marshal(req)
	job := entity.NewGenerationJob(project.ID, project.ExpectedChapters, inputParams)
	job.ID = uuid.New().String()

	if err := h.scheduler.Enqueue(ctx, job); err != nil {
		writeError(c, err)
		return
	}

	if err := h.jobs.Create(ctx, job); err != nil {
		// 入库失败时撤回已入队的任务，避免占住项目的生成名额
		if cancelErr := h.scheduler.Cancel(project.ID, "job record creation failed"); cancelErr != nil {
			logger.Error(ctx, "failed to withdraw enqueued job", cancelErr, "job_id", job.ID)
		}
		writeError(c, err)
		return
	}

	event := entity.NewProgressEvent(job.ID, project.ID, entity.EventJobQueued).
		WithChapter(0, job.TotalChapters).
		WithMessage("generation job queued")
	h.bus.Publish(ctx, event)

	logger.FromContext(ctx).Info("generation job queued",
		"job_id", job.ID, "project_id", project.ID, "total_chapters", job.TotalChapters)
	dto.Accepted(c, dto.ToJobResponse(job))
}

// Cancel 取消项目当前的生成任务
// POST /v1/projects/:pid/generation/cancel
func (h *GenerationHandler) Cancel(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req dto.CancelJobRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		writeError(c, errors.ErrInvalidParam.WithError(err))
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by user"
	}

	ctx := c.Request.Context()
	active, err := h.jobs.GetActiveByProject(ctx, projectID)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.scheduler.Cancel(projectID, reason); err != nil {
		writeError(c, err)
		return
	}

	if active != nil {
		if err := h.cache.InvalidateJob(ctx, active.ID); err != nil {
			logger.FromContext(ctx).Warn("failed to invalidate job cache",
				"job_id", active.ID, "error", err)
		}
		dto.Success(c, dto.ToJobResponse(active))
		return
	}
	dto.NoContent(c)
}

// GetJob 查询任务状态
// GET /v1/jobs/:jid
//
// 经过 Redis 缓存读取，singleflight 合并并发轮询
func (h *GenerationHandler) GetJob(c *gin.Context) {
	jobID, err := dto.BindJobID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	raw, err := h.cache.GetOrLoadSafe(ctx, redisinfra.BuildJobStatusKey(jobID), jobStatusCacheTTL,
		func() (interface{}, error) {
			job, err := h.jobs.GetByID(ctx, jobID)
			if err != nil {
				return nil, err
			}
			if job == nil {
				return nil, errors.ErrJobNotFound
			}
			return dto.ToJobResponse(job), nil
		})
	if err != nil {
		writeError(c, err)
		return
	}

	var resp dto.JobResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		writeError(c, errors.Wrap(err, errors.CodeCacheError, "corrupted job status cache"))
		return
	}
	dto.Success(c, &resp)
}

// ListJobs 获取项目任务历史
// GET /v1/projects/:pid/jobs?status=&page=&page_size=
func (h *GenerationHandler) ListJobs(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	page := dto.BindPage(c)
	filter := &repository.JobFilter{
		Status: entity.JobStatus(c.Query("status")),
	}

	result, err := h.jobs.ListByProject(c.Request.Context(), projectID, filter,
		repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		writeError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.ToJobResponses(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// JobStats 获取项目任务统计
// GET /v1/projects/:pid/jobs/stats
func (h *GenerationHandler) JobStats(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	stats, err := h.jobs.GetJobStats(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, stats)
}
