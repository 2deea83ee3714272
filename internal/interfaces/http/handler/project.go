package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/interfaces/http/dto"
	"z-novel-orchestrator/pkg/errors"
	"z-novel-orchestrator/pkg/logger"
)

// ProjectHandler 项目管理处理器
type ProjectHandler struct {
	projects repository.ProjectRepository
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(projects repository.ProjectRepository) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// Create 创建项目
// POST /v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.ErrInvalidParam.WithError(err))
		return
	}

	genre := entity.Genre(req.Genre)
	if req.Genre != "" && !genre.Valid() {
		writeError(c, errors.ErrInvalidParam.WithDetail("unknown genre: "+req.Genre))
		return
	}
	length := entity.NovelLength(req.Length)
	if req.Length != "" && !length.Valid() {
		writeError(c, errors.ErrInvalidParam.WithDetail("unknown length: "+req.Length))
		return
	}

	project := entity.NewProject(req.Title, req.Premise, genre, length)
	if req.Settings != nil {
		req.Settings.ApplySettings(project.Settings)
	}

	if err := h.projects.Create(c.Request.Context(), project); err != nil {
		writeError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("project created",
		"project_id", project.ID, "title", project.Title)
	dto.Created(c, dto.ToProjectResponse(project))
}

// Get 获取项目详情
// GET /v1/projects/:pid
func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	project, err := h.projects.GetByID(c.Request.Context(), projectID)
	if err != nil {
		writeError(c, err)
		return
	}
	if project == nil {
		writeError(c, errors.ErrProjectNotFound)
		return
	}

	dto.Success(c, dto.ToProjectResponse(project))
}

// List 获取项目列表
// GET /v1/projects?status=&genre=&page=&page_size=
func (h *ProjectHandler) List(c *gin.Context) {
	page := dto.BindPage(c)
	filter := &repository.ProjectFilter{
		Genre:  entity.Genre(c.Query("genre")),
		Status: entity.ProjectStatus(c.Query("status")),
	}

	result, err := h.projects.List(c.Request.Context(), filter,
		repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		writeError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.ToProjectResponses(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Update 更新项目
// PATCH /v1/projects/:pid
func (h *ProjectHandler) Update(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
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

	// 生成中的项目不允许修改设定，避免影响进行中的任务
	if project.Status == entity.ProjectStatusGenerating {
		writeError(c, errors.ErrConflict.WithDetail("project is generating, settings are locked"))
		return
	}

	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Premise != nil {
		project.Premise = *req.Premise
	}
	if req.Genre != nil {
		genre := entity.Genre(*req.Genre)
		if !genre.Valid() {
			writeError(c, errors.ErrInvalidParam.WithDetail("unknown genre: "+*req.Genre))
			return
		}
		project.Genre = genre
	}
	if req.Settings != nil {
		if project.Settings == nil {
			project.Settings = &entity.ProjectSettings{}
		}
		req.Settings.ApplySettings(project.Settings)
	}

	if err := h.projects.Update(ctx, project); err != nil {
		writeError(c, err)
		return
	}

	dto.Success(c, dto.ToProjectResponse(project))
}

// Archive 归档项目
// DELETE /v1/projects/:pid
func (h *ProjectHandler) Archive(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
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

	if project.Status == entity.ProjectStatusGenerating {
		writeError(c, errors.ErrConflict.WithDetail("cancel the active generation job before archiving"))
		return
	}

	if err := h.projects.UpdateStatus(ctx, projectID, entity.ProjectStatusArchived); err != nil {
		writeError(c, err)
		return
	}

	dto.NoContent(c)
}

// Stats 获取项目统计
// GET /v1/projects/:pid/stats
func (h *ProjectHandler) Stats(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
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

	stats, err := h.projects.GetStats(ctx, projectID)
	if err != nil {
		writeError(c, err)
		return
	}

	dto.Success(c, dto.ProjectStatsResponse{
		Project: dto.ToProjectResponse(project),
		Stats:   stats,
	})
}
