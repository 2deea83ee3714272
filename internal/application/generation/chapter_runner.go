package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/infrastructure/agent"
	errs "z-novel-orchestrator/pkg/errors"
	"z-novel-orchestrator/pkg/logger"
	"z-novel-orchestrator/pkg/metrics"
)

// ChapterObserver 章节状态变化回调
// 编排器通过它持久化中间状态并发布进度事件
type ChapterObserver func(ctx context.Context, chapter *entity.ChapterResult, eventType entity.ProgressEventType)

// ChapterRunner 单章生成流水线
// 驱动 写作 -> 评估 -> 裁决 循环，直至章节验收通过或尝试耗尽
type ChapterRunner struct {
	registry    *agent.Registry
	gate        *Gate
	heuristic   *HeuristicEvaluator
	targetWords int
}

// NewChapterRunner 创建章节流水线
func NewChapterRunner(registry *agent.Registry, gate *Gate, targetWords int) *ChapterRunner {
	if targetWords <= 0 {
		targetWords = 2000
	}
	return &ChapterRunner{
		registry:    registry,
		gate:        gate,
		heuristic:   NewHeuristicEvaluator(targetWords),
		targetWords: targetWords,
	}
}

// Run 执行单章生成
// 结束时 chapter 处于 accepted 或 failed 终态；上下文取消时
// 章节标记为失败并返回取消错误
func (r *ChapterRunner) Run(ctx context.Context, project *entity.Project, chapter *entity.ChapterResult, story *RollingStoryContext, observe ChapterObserver) error {
	log := logger.FromContext(ctx)

	writer, ok := r.registry.Get(entity.RoleWriter)
	if !ok {
		r.failChapter(ctx, chapter, "writer agent is not configured")
		metrics.ChapterGenerationTotal.WithLabelValues(string(entity.ChapterStateFailed)).Inc()
		return errs.ErrMissingCapability.WithDetail("writer role is required for chapter generation")
	}

	storyContext := story.SnapshotForPrompt()
	attribution := &entity.AgentAttribution{
		WriterProvider: writer.Provider(),
		WriterModel:    writer.Model(),
	}
	chapter.Attribution = attribution

	for {
		if err := ctx.Err(); err != nil {
			r.failChapter(ctx, chapter, "generation cancelled")
			return err
		}

		from := chapter.State
		if err := chapter.BeginGeneration(); err != nil {
			return err
		}
		logTransition(log, chapter, from, "attempt started")
		notify(ctx, observe, chapter, eventTypeForAttempt(chapter.Attempts))

		var prompt string
		if chapter.Attempts == 1 {
			prompt = buildChapterPrompt(project, chapter, storyContext, r.targetWords)
		} else {
			prompt = buildRegeneratePrompt(project, chapter, storyContext, r.targetWords)
		}

		outcome, err := writer.Complete(ctx, writerSystemPrompt(project.Genre), prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				r.failChapter(ctx, chapter, "generation cancelled")
				return err
			}
			r.failChapter(ctx, chapter, fmt.Sprintf("writer failed: %v", err))
			metrics.ChapterGenerationTotal.WithLabelValues(string(entity.ChapterStateFailed)).Inc()
			metrics.ChapterAttempts.WithLabelValues(string(entity.ChapterStateFailed)).Observe(float64(chapter.Attempts))
			return fmt.Errorf("chapter %d writer call failed: %w", chapter.SeqNum, err)
		}
		attribution.PromptTokens += outcome.PromptTokens
		attribution.CompletionTokens += outcome.CompletionTokens

		draft := r.polish(ctx, project, chapter, outcome.Text, attribution)

		from = chapter.State
		if err := chapter.BeginEvaluation(draft); err != nil {
			return err
		}
		logTransition(log, chapter, from, "draft completed")

		verdict := r.evaluate(ctx, project, chapter, storyContext, attribution)

		decision, failing := r.gate.Decide(verdict, chapter.Attempts)
		log.Info("quality gate decision",
			"project_id", project.ID,
			"seq_num", chapter.SeqNum,
			"attempt", chapter.Attempts,
			"aggregate", verdict.Aggregate,
			"decision", decision,
			"failing_criteria", failing,
		)

		switch decision {
		case DecisionAccept:
			from = chapter.State
			if err := chapter.Accept(verdict); err != nil {
				return err
			}
			logTransition(log, chapter, from, "quality gate accepted")
			metrics.ChapterGenerationTotal.WithLabelValues(string(entity.ChapterStateAccepted)).Inc()
			metrics.ChapterAttempts.WithLabelValues(string(entity.ChapterStateAccepted)).Observe(float64(chapter.Attempts))
			metrics.ChapterWordCount.Observe(float64(chapter.WordCount))
			return nil

		case DecisionRegenerate:
			from = chapter.State
			if err := chapter.RequestRegeneration(verdict); err != nil {
				return err
			}
			logTransition(log, chapter, from, r.gate.RejectionReason(verdict, failing))

		case DecisionEscalate:
			reason := r.gate.RejectionReason(verdict, failing)
			from = chapter.State
			if err := chapter.Fail(fmt.Sprintf("quality gate rejected after %d attempts: %s", chapter.Attempts, reason)); err != nil {
				return err
			}
			logTransition(log, chapter, from, reason)
			chapter.Verdict = verdict
			metrics.ChapterGenerationTotal.WithLabelValues(string(entity.ChapterStateFailed)).Inc()
			metrics.ChapterAttempts.WithLabelValues(string(entity.ChapterStateFailed)).Observe(float64(chapter.Attempts))
			return errs.ErrGenerationFailed.WithDetail(chapter.FailReason)
		}
	}
}

// polish 编辑润色草稿
// editor 角色缺失或调用失败时保留原稿，润色是增强而不是必经环节
func (r *ChapterRunner) polish(ctx context.Context, project *entity.Project, chapter *entity.ChapterResult, draft string, attribution *entity.AgentAttribution) string {
	editor, ok := r.registry.Get(entity.RoleEditor)
	if !ok {
		return draft
	}

	attribution.EditorProvider = editor.Provider()
	attribution.EditorModel = editor.Model()

	outcome, err := editor.Complete(ctx, editorSystemPrompt, buildEditPrompt(project, chapter, draft))
	if err != nil {
		logger.FromContext(ctx).Warn("editor polish failed, keeping writer draft",
			"project_id", project.ID,
			"seq_num", chapter.SeqNum,
			"error", err,
		)
		return draft
	}
	attribution.PromptTokens += outcome.PromptTokens
	attribution.CompletionTokens += outcome.CompletionTokens

	polished := strings.TrimSpace(outcome.Text)
	if polished == "" {
		return draft
	}
	return polished
}

// evaluate 评估章节质量
// 监察 Agent 可用时使用模型评估，调用或解析失败时退化为启发式评估
func (r *ChapterRunner) evaluate(ctx context.Context, project *entity.Project, chapter *entity.ChapterResult, storyContext string, attribution *entity.AgentAttribution) *entity.QualityVerdict {
	log := logger.FromContext(ctx)

	monitor, ok := r.registry.Get(entity.RoleMonitor)
	if !ok {
		return r.heuristic.Evaluate(chapter.ContentText)
	}

	attribution.MonitorProvider = monitor.Provider()
	attribution.MonitorModel = monitor.Model()

	outcome, err := monitor.Complete(ctx, monitorSystemPrompt, buildEvaluatePrompt(project, chapter, storyContext))
	if err != nil {
		log.Warn("monitor evaluation failed, falling back to heuristics",
			"project_id", project.ID,
			"seq_num", chapter.SeqNum,
			"error", err,
		)
		return r.heuristic.Evaluate(chapter.ContentText)
	}
	attribution.PromptTokens += outcome.PromptTokens
	attribution.CompletionTokens += outcome.CompletionTokens

	verdict, err := agent.ParseVerdict(outcome.Text, string(monitor.Role()))
	if err != nil {
		log.Warn("monitor verdict unparseable, falling back to heuristics",
			"project_id", project.ID,
			"seq_num", chapter.SeqNum,
			"error", err,
		)
		return r.heuristic.Evaluate(chapter.ContentText)
	}
	return verdict
}

// failChapter 将章节置为失败，忽略已处于终态的情况
func (r *ChapterRunner) failChapter(ctx context.Context, chapter *entity.ChapterResult, reason string) {
	if chapter.State.Terminal() {
		return
	}
	from := chapter.State
	if chapter.State == entity.ChapterStatePending || chapter.State == entity.ChapterStateRegenerating {
		// pending/regenerating 无法直接失败，先进入生成态
		if err := chapter.BeginGeneration(); err != nil {
			return
		}
	}
	if chapter.State == entity.ChapterStateGenerating || chapter.State == entity.ChapterStateEvaluating {
		_ = chapter.Fail(reason)
		logTransition(logger.FromContext(ctx), chapter, from, reason)
	}
}

// logTransition 记录章节状态迁移
func logTransition(log *slog.Logger, chapter *entity.ChapterResult, from entity.ChapterState, cause string) {
	log.Info("chapter state transition",
		"chapter_id", chapter.ID,
		"seq_num", chapter.SeqNum,
		"from", string(from),
		"to", string(chapter.State),
		"attempt", chapter.Attempts,
		"cause", cause,
	)
}

func eventTypeForAttempt(attempt int) entity.ProgressEventType {
	if attempt > 1 {
		return entity.EventChapterRegenerating
	}
	return entity.EventChapterStarted
}

func notify(ctx context.Context, observe ChapterObserver, chapter *entity.ChapterResult, eventType entity.ProgressEventType) {
	if observe != nil {
		observe(ctx, chapter, eventType)
	}
}
