package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-orchestrator/internal/application/progress"
	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/infrastructure/agent"
	"z-novel-orchestrator/pkg/logger"
)

var tracer = otel.Tracer("generation")

// Orchestrator 项目级生成编排器
// 严格顺序推进章节：前一章未验收不会开始下一章
type Orchestrator struct {
	projects   repository.ProjectRepository
	chapters   repository.ChapterRepository
	jobs       repository.JobRepository
	tx         repository.Transactor
	registry   *agent.Registry
	runner     *ChapterRunner
	summarizer *Summarizer
	bus        *progress.Bus
	cfg        config.GenerationConfig
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	projects repository.ProjectRepository,
	chapters repository.ChapterRepository,
	jobs repository.JobRepository,
	tx repository.Transactor,
	registry *agent.Registry,
	gate *Gate,
	bus *progress.Bus,
	cfg config.GenerationConfig,
) *Orchestrator {
	return &Orchestrator{
		projects:   projects,
		chapters:   chapters,
		jobs:       jobs,
		tx:         tx,
		registry:   registry,
		runner:     NewChapterRunner(registry, gate, cfg.ChapterWords),
		summarizer: NewSummarizer(registry),
		bus:        bus,
		cfg:        cfg,
	}
}

// Run 执行一次完整的项目生成任务
// 上下文取消时任务标记为 cancelled，项目回到可重启状态
func (o *Orchestrator) Run(ctx context.Context, job *entity.GenerationJob) error {
	ctx, span := tracer.Start(ctx, "generation.Orchestrator.Run", trace.WithAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("project_id", job.ProjectID),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	project, err := o.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		o.failJob(ctx, job, fmt.Sprintf("failed to load project: %v", err))
		return fmt.Errorf("failed to load project %s: %w", job.ProjectID, err)
	}

	project.StartGeneration()
	if err := o.projects.Update(ctx, project); err != nil {
		o.failJob(ctx, job, fmt.Sprintf("failed to mark project generating: %v", err))
		return fmt.Errorf("failed to update project: %w", err)
	}

	job.Start()
	if err := o.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	o.publish(ctx, entity.NewProgressEvent(job.ID, project.ID, entity.EventJobStarted).
		WithMessage(fmt.Sprintf("generation started for %q", project.Title)))

	o.ensurePlans(ctx, job, project)

	// 失败后重启的任务从上次已验收的章节之后继续
	story, nextSeq, err := o.resumePoint(ctx, project)
	if err != nil {
		o.failJob(ctx, job, fmt.Sprintf("failed to load accepted chapters: %v", err))
		return err
	}

	log.Info("generation run starting",
		"job_id", job.ID,
		"project_id", project.ID,
		"total_chapters", project.ExpectedChapters,
		"start_seq", nextSeq,
	)

	for seq := nextSeq; seq <= project.ExpectedChapters; seq++ {
		if err := ctx.Err(); err != nil {
			return o.handleCancellation(job, project, err)
		}

		chapter, err := o.runChapter(ctx, job, project, story, seq)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return o.handleCancellation(job, project, err)
			}
			reason := fmt.Sprintf("chapter %d failed: %v", seq, err)
			o.publish(ctx, entity.NewProgressEvent(job.ID, project.ID, entity.EventChapterFailed).
				WithChapter(seq, project.ExpectedChapters).
				WithMessage(reason))

			project.Fail(reason)
			if uerr := o.projects.Update(ctx, project); uerr != nil {
				log.Error("failed to persist project failure", "project_id", project.ID, "error", uerr)
			}
			o.failJob(ctx, job, reason)
			o.publish(ctx, entity.NewProgressEvent(job.ID, project.ID, entity.EventProjectFailed).
				WithMessage(reason))
			return err
		}

		o.publish(ctx, entity.NewProgressEvent(job.ID, project.ID, entity.EventChapterAccepted).
			WithChapter(seq, project.ExpectedChapters).
			WithAttempt(chapter.Attempts).
			WithMessage(fmt.Sprintf("chapter %d accepted with score %.1f", seq, chapter.Verdict.Aggregate)))
	}

	project.Complete()
	if err := o.projects.Update(ctx, project); err != nil {
		log.Error("failed to persist project completion", "project_id", project.ID, "error", err)
	}

	job.Complete()
	if err := o.jobs.Update(ctx, job); err != nil {
		log.Error("failed to persist job completion", "job_id", job.ID, "error", err)
	}
	o.publish(ctx, entity.NewProgressEvent(job.ID, project.ID, entity.EventProjectCompleted).
		WithMessage(fmt.Sprintf("novel %q completed: %d chapters, %d words",
			project.Title, project.AcceptedChapters, project.CurrentWordCount)))

	log.Info("generation run completed",
		"job_id", job.ID,
		"project_id", project.ID,
		"chapters", project.AcceptedChapters,
		"words", project.CurrentWordCount,
	)
	return nil
}

// runChapter 生成并验收单个章节
func (o *Orchestrator) runChapter(ctx context.Context, job *entity.GenerationJob, project *entity.Project, story *RollingStoryContext, seq int) (*entity.ChapterResult, error) {
	ctx, span := tracer.Start(ctx, "generation.Orchestrator.runChapter", trace.WithAttributes(
		attribute.Int("seq_num", seq),
	))
	defer span.End()

	log := logger.FromContext(ctx)

	job.AdvanceChapter(seq)
	if err := o.jobs.UpdateProgress(ctx, job.ID, job.CurrentChapter, job.Progress); err != nil {
		log.Error("failed to persist job progress", "job_id", job.ID, "error", err)
	}

	chapter := entity.NewChapterResult(project.ID, job.ID, seq, o.planFor(project, seq))
	if err := o.chapters.Create(ctx, chapter); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create chapter record: %w", err)
	}

	observe := func(ctx context.Context, c *entity.ChapterResult, eventType entity.ProgressEventType) {
		if err := o.chapters.Update(ctx, c); err != nil {
			log.Error("failed to persist chapter state", "chapter_id", c.ID, "state", c.State, "error", err)
		}
		o.publish(ctx, entity.NewProgressEvent(job.ID, project.ID, eventType).
			WithChapter(seq, project.ExpectedChapters).
			WithAttempt(c.Attempts))
	}

	runErr := o.runner.Run(ctx, project, chapter, story, observe)

	if chapter.Attribution != nil {
		job.AddTokenUsage(chapter.Attribution.PromptTokens, chapter.Attribution.CompletionTokens)
	}

	if runErr != nil {
		// 取消场景下原始上下文已失效，终态落库使用独立的短时上下文
		persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.chapters.Update(persistCtx, chapter); err != nil {
			log.Error("failed to persist chapter result", "chapter_id", chapter.ID, "error", err)
		}
		cancel()
		span.RecordError(runErr)
		return nil, runErr
	}

	chapter.SetSummary(o.summarizer.Summarize(ctx, project, chapter))
	story.Append(chapter.SeqNum, chapter.Title, chapter.Summary)

	// 章节定稿与项目计数在同一事务内落库，避免两者不一致
	if err := o.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.chapters.Update(txCtx, chapter); err != nil {
			return fmt.Errorf("failed to persist accepted chapter: %w", err)
		}
		project.RecordChapterAccepted(chapter.WordCount)
		return o.projects.Update(txCtx, project)
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return chapter, nil
}

// resumePoint 根据已验收章节确定续写位置并重建滚动上下文
func (o *Orchestrator) resumePoint(ctx context.Context, project *entity.Project) (*RollingStoryContext, int, error) {
	keep := o.cfg.SummaryWindow
	if project.Settings != nil && project.Settings.SummaryWindow > 0 {
		keep = project.Settings.SummaryWindow
	}
	story := NewRollingStoryContext(keep)

	recent, err := o.chapters.GetRecentAccepted(ctx, project.ID, keep)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load recent accepted chapters: %w", err)
	}
	// 仓储按序号倒序返回，翻转为升序
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	story.Seed(recent)

	accepted, err := o.chapters.CountByState(ctx, project.ID, entity.ChapterStateAccepted)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count accepted chapters: %w", err)
	}
	return story, int(accepted) + 1, nil
}

// ensurePlans 在项目缺少章节大纲时让 coordinator 先行规划整体结构
// coordinator 缺失或输出不可用时退回逐章默认计划
func (o *Orchestrator) ensurePlans(ctx context.Context, job *entity.GenerationJob, project *entity.Project) {
	if len(project.ChapterPlans) > 0 {
		return
	}
	coordinator, ok := o.registry.Get(entity.RoleCoordinator)
	if !ok {
		return
	}

	log := logger.FromContext(ctx)
	research := o.researchNotes(ctx, job, project)
	outcome, err := coordinator.Complete(ctx, coordinatorSystemPrompt, buildPlanPrompt(project, research))
	if err != nil {
		log.Warn("chapter planning failed, using default plans",
			"project_id", project.ID, "error", err)
		return
	}
	job.AddTokenUsage(outcome.PromptTokens, outcome.CompletionTokens)

	plans, err := agent.ParseChapterPlans(outcome.Text)
	if err != nil {
		log.Warn("chapter planning response unparseable, using default plans",
			"project_id", project.ID, "error", err)
		return
	}

	project.ChapterPlans = plans
	if err := o.projects.Update(ctx, project); err != nil {
		log.Error("failed to persist chapter plans", "project_id", project.ID, "error", err)
	}
	log.Info("chapter plans generated", "project_id", project.ID, "chapters", len(plans))
}

// researchNotes 在规划前让 researcher 整理背景设定
// researcher 缺失或调用失败时返回空串，规划退回仅凭前提进行
func (o *Orchestrator) researchNotes(ctx context.Context, job *entity.GenerationJob, project *entity.Project) string {
	researcher, ok := o.registry.Get(entity.RoleResearcher)
	if !ok {
		return ""
	}

	outcome, err := researcher.Complete(ctx, researcherSystemPrompt, buildResearchPrompt(project))
	if err != nil {
		logger.FromContext(ctx).Warn("background research failed, planning without it",
			"project_id", project.ID, "error", err)
		return ""
	}
	job.AddTokenUsage(outcome.PromptTokens, outcome.CompletionTokens)
	return strings.TrimSpace(outcome.Text)
}

// planFor 返回指定序号的章节计划，无预设大纲时生成默认计划
func (o *Orchestrator) planFor(project *entity.Project, seq int) entity.ChapterPlan {
	for _, plan := range project.ChapterPlans {
		if plan.Index == seq {
			return plan
		}
	}
	return entity.ChapterPlan{
		Index: seq,
		Title: fmt.Sprintf("第%d章", seq),
	}
}

// handleCancellation 处理协作式取消：任务置为 cancelled，项目保留中断现场
func (o *Orchestrator) handleCancellation(job *entity.GenerationJob, project *entity.Project, cause error) error {
	// 原始上下文已取消，持久化与事件发布使用独立的短时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logger.Default()

	job.Cancel("generation cancelled")
	if err := o.jobs.Update(ctx, job); err != nil {
		log.Error("failed to persist job cancellation", "job_id", job.ID, "error", err)
	}

	project.Fail("generation cancelled")
	if err := o.projects.Update(ctx, project); err != nil {
		log.Error("failed to persist project cancellation", "project_id", project.ID, "error", err)
	}

	o.publish(ctx, entity.NewProgressEvent(job.ID, project.ID, entity.EventProjectCancelled).
		WithMessage("generation cancelled"))

	log.Info("generation run cancelled", "job_id", job.ID, "project_id", project.ID)
	return cause
}

// failJob 任务失败的收尾处理
func (o *Orchestrator) failJob(ctx context.Context, job *entity.GenerationJob, reason string) {
	job.Fail(reason)
	if err := o.jobs.Update(ctx, job); err != nil {
		logger.FromContext(ctx).Error("failed to persist job failure", "job_id", job.ID, "error", err)
	}
}

// publish 发布进度事件
func (o *Orchestrator) publish(ctx context.Context, event *entity.ProgressEvent) {
	if o.bus != nil {
		o.bus.Publish(ctx, event)
	}
}
