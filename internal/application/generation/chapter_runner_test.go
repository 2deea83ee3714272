package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	errs "z-novel-orchestrator/pkg/errors"
)

const goodVerdictJSON = `{"coherence": 90, "grammar": 88, "creativity": 85, "consistency": 92, "feedback": "很好"}`
const badVerdictJSON = `{"coherence": 50, "grammar": 55, "creativity": 40, "consistency": 45, "feedback": "情节混乱，需要重写"}`

func testGate() *Gate {
	return NewGate(config.QualityConfig{MinAggregate: 70, MaxAttempts: 3})
}

func newTestChapter() (*entity.Project, *entity.ChapterResult) {
	project := entity.NewProject("测试小说", "一个少年的冒险", entity.GenreFantasy, entity.LengthShort)
	project.ID = "project-1"
	chapter := entity.NewChapterResult(project.ID, "job-1", 1, entity.ChapterPlan{Index: 1, Title: "第1章"})
	return project, chapter
}

func TestChapterRunnerAcceptsFirstAttempt(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"这是第一章的内容。"}}
	monitor := &fakeAgent{role: entity.RoleMonitor, responses: []string{goodVerdictJSON}}
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleMonitor: monitor,
	}), testGate(), 2000)

	project, chapter := newTestChapter()
	var events []entity.ProgressEventType
	observe := func(ctx context.Context, c *entity.ChapterResult, typ entity.ProgressEventType) {
		events = append(events, typ)
	}

	if err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), observe); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if chapter.State != entity.ChapterStateAccepted {
		t.Errorf("state = %s, want accepted", chapter.State)
	}
	if chapter.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", chapter.Attempts)
	}
	if chapter.Verdict == nil || chapter.Verdict.Aggregate != 88.75 {
		t.Errorf("verdict = %+v, want aggregate 88.75", chapter.Verdict)
	}
	if writer.callCount() != 1 || monitor.callCount() != 1 {
		t.Errorf("writer/monitor calls = %d/%d, want 1/1", writer.callCount(), monitor.callCount())
	}
	if len(events) != 1 || events[0] != entity.EventChapterStarted {
		t.Errorf("events = %v, want [chapter_started]", events)
	}
	if chapter.Attribution == nil || chapter.Attribution.WriterProvider != "fake" {
		t.Errorf("attribution = %+v, want writer provider recorded", chapter.Attribution)
	}
}

func TestChapterRunnerRegeneratesThenAccepts(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"初稿内容。", "修改后的内容。"}}
	monitor := &fakeAgent{role: entity.RoleMonitor, responses: []string{badVerdictJSON, goodVerdictJSON}}
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleMonitor: monitor,
	}), testGate(), 2000)

	project, chapter := newTestChapter()
	var events []entity.ProgressEventType
	observe := func(ctx context.Context, c *entity.ChapterResult, typ entity.ProgressEventType) {
		events = append(events, typ)
	}

	if err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), observe); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if chapter.State != entity.ChapterStateAccepted {
		t.Errorf("state = %s, want accepted", chapter.State)
	}
	if chapter.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", chapter.Attempts)
	}
	if chapter.ContentText != "修改后的内容。" {
		t.Errorf("content = %q, want second draft", chapter.ContentText)
	}
	want := []entity.ProgressEventType{entity.EventChapterStarted, entity.EventChapterRegenerating}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, events[i], want[i])
		}
	}
}

func TestChapterRunnerEscalatesAfterMaxAttempts(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"内容。"}}
	monitor := &fakeAgent{role: entity.RoleMonitor, responses: []string{badVerdictJSON}}
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleMonitor: monitor,
	}), testGate(), 2000)

	project, chapter := newTestChapter()
	err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), nil)

	if !errs.IsCode(err, errs.CodeGenerationFailed) {
		t.Errorf("Run() error = %v, want generation failed", err)
	}
	if chapter.State != entity.ChapterStateFailed {
		t.Errorf("state = %s, want failed", chapter.State)
	}
	if chapter.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", chapter.Attempts)
	}
	if writer.callCount() != 3 {
		t.Errorf("writer calls = %d, want 3", writer.callCount())
	}
}

func TestChapterRunnerEditorPolish(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"初稿内容。"}}
	editor := &fakeAgent{role: entity.RoleEditor, responses: []string{"润色后的内容。"}}
	monitor := &fakeAgent{role: entity.RoleMonitor, responses: []string{goodVerdictJSON}}
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleEditor:  editor,
		entity.RoleMonitor: monitor,
	}), testGate(), 2000)

	project, chapter := newTestChapter()
	if err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if chapter.ContentText != "润色后的内容。" {
		t.Errorf("content = %q, want polished draft", chapter.ContentText)
	}
	if editor.callCount() != 1 {
		t.Errorf("editor calls = %d, want 1", editor.callCount())
	}
	if chapter.Attribution.EditorProvider != "fake" || chapter.Attribution.EditorModel != "fake-model" {
		t.Errorf("attribution = %+v, want editor recorded", chapter.Attribution)
	}
}

func TestChapterRunnerEditorFailureKeepsDraft(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"初稿内容。"}}
	editor := &fakeAgent{role: entity.RoleEditor, err: errors.New("editor unavailable")}
	monitor := &fakeAgent{role: entity.RoleMonitor, responses: []string{goodVerdictJSON}}
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleEditor:  editor,
		entity.RoleMonitor: monitor,
	}), testGate(), 2000)

	project, chapter := newTestChapter()
	if err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if chapter.State != entity.ChapterStateAccepted {
		t.Errorf("state = %s, want accepted", chapter.State)
	}
	if chapter.ContentText != "初稿内容。" {
		t.Errorf("content = %q, want original draft kept", chapter.ContentText)
	}
}

func TestChapterRunnerMissingWriter(t *testing.T) {
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{}), testGate(), 2000)

	project, chapter := newTestChapter()
	err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), nil)

	if !errs.IsCode(err, errs.CodeMissingCapability) {
		t.Errorf("Run() error = %v, want missing capability", err)
	}
	if chapter.State != entity.ChapterStateFailed {
		t.Errorf("state = %s, want failed", chapter.State)
	}
}

func TestChapterRunnerWriterFailure(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, err: errors.New("provider exploded")}
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter: writer,
	}), testGate(), 2000)

	project, chapter := newTestChapter()
	err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), nil)

	if err == nil {
		t.Fatal("Run() should fail when writer errors")
	}
	if chapter.State != entity.ChapterStateFailed {
		t.Errorf("state = %s, want failed", chapter.State)
	}
	if chapter.FailReason == "" {
		t.Error("fail reason should be recorded")
	}
}

func TestChapterRunnerHeuristicFallbackWithoutMonitor(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{wellFormedChapter()}}
	// 无监察 Agent，验证启发式评估接管
	gate := NewGate(config.QualityConfig{MinAggregate: 1, MaxAttempts: 3})
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter: writer,
	}), gate, 2000)

	project, chapter := newTestChapter()
	if err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if chapter.State != entity.ChapterStateAccepted {
		t.Errorf("state = %s, want accepted", chapter.State)
	}
	if chapter.Verdict == nil || chapter.Verdict.Evaluator != heuristicEvaluatorName {
		t.Errorf("verdict evaluator = %+v, want heuristic", chapter.Verdict)
	}
}

func TestChapterRunnerHeuristicFallbackOnUnparseableVerdict(t *testing.T) {
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{wellFormedChapter()}}
	monitor := &fakeAgent{role: entity.RoleMonitor, responses: []string{"我觉得写得不错"}}
	gate := NewGate(config.QualityConfig{MinAggregate: 1, MaxAttempts: 3})
	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleMonitor: monitor,
	}), gate, 2000)

	project, chapter := newTestChapter()
	if err := runner.Run(t.Context(), project, chapter, NewRollingStoryContext(3), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if chapter.Verdict == nil || chapter.Verdict.Evaluator != heuristicEvaluatorName {
		t.Errorf("verdict evaluator = %+v, want heuristic fallback", chapter.Verdict)
	}
}

func TestChapterRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"内容。"}}
	writer.onCall = func(call int) { cancel() }

	runner := NewChapterRunner(newTestRegistry(map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter: writer,
	}), testGate(), 2000)

	project, chapter := newTestChapter()
	err := runner.Run(ctx, project, chapter, NewRollingStoryContext(3), nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if chapter.State != entity.ChapterStateFailed {
		t.Errorf("state = %s, want failed", chapter.State)
	}
}

func TestChapterRunnerRegenerationPromptCarriesFeedback(t *testing.T) {
	project, chapter := newTestChapter()
	chapter.ContentText = "上一稿"
	chapter.Verdict = entity.NewQualityVerdict(map[string]float64{
		entity.CriterionCoherence: 50,
	}, "情节跳跃太大", "monitor")

	prompt := buildRegeneratePrompt(project, chapter, "前情", 2000)
	for _, want := range []string{"上一稿", "情节跳跃太大", "前情", "重新生成"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("regenerate prompt missing %q", want)
		}
	}
}
