package generation

import (
	"context"
	"errors"
	"testing"

	"z-novel-orchestrator/internal/application/progress"
	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
)

type orchestratorEnv struct {
	projects *memProjectRepo
	chapters *memChapterRepo
	jobs     *memJobRepo
	bus      *progress.Bus
	orch     *Orchestrator
}

func newOrchestratorEnv(t *testing.T, agents map[entity.AgentRole]*fakeAgent) *orchestratorEnv {
	t.Helper()
	env := &orchestratorEnv{
		projects: newMemProjectRepo(),
		chapters: newMemChapterRepo(),
		jobs:     newMemJobRepo(),
		bus:      progress.NewBus(256),
	}
	t.Cleanup(env.bus.Close)

	gate := NewGate(config.QualityConfig{MinAggregate: 70, MaxAttempts: 3})
	env.orch = NewOrchestrator(
		env.projects, env.chapters, env.jobs, passthroughTx{},
		newTestRegistry(agents), gate, env.bus,
		config.GenerationConfig{SummaryWindow: 3, ChapterWords: 2000},
	)
	return env
}

func (env *orchestratorEnv) seedProject(t *testing.T) (*entity.Project, *entity.GenerationJob) {
	t.Helper()
	ctx := context.Background()

	project := entity.NewProject("星海旅人", "一场跨越星系的流亡", entity.GenreScienceFiction, entity.LengthShort)
	if err := env.projects.Create(ctx, project); err != nil {
		t.Fatal(err)
	}
	job := entity.NewGenerationJob(project.ID, project.ExpectedChapters, nil)
	if err := env.jobs.Create(ctx, job); err != nil {
		t.Fatal(err)
	}
	return project, job
}

func collectEvents(ch <-chan *entity.ProgressEvent) map[entity.ProgressEventType]int {
	counts := make(map[entity.ProgressEventType]int)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return counts
			}
			counts[e.Type]++
		default:
			return counts
		}
	}
}

func TestOrchestratorCompletesProject(t *testing.T) {
	env := newOrchestratorEnv(t, map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  {role: entity.RoleWriter, responses: []string{"章节内容若干。"}},
		entity.RoleMonitor: {role: entity.RoleMonitor, responses: []string{goodVerdictJSON}},
	})
	project, job := env.seedProject(t)

	events, unsubscribe := env.bus.Subscribe()
	defer unsubscribe()

	if err := env.orch.Run(t.Context(), job); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := env.projects.GetByID(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != entity.ProjectStatusCompleted {
		t.Errorf("project status = %s, want completed", got.Status)
	}
	if got.AcceptedChapters != project.ExpectedChapters {
		t.Errorf("accepted chapters = %d, want %d", got.AcceptedChapters, project.ExpectedChapters)
	}

	storedJob, err := env.jobs.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if storedJob.Status != entity.JobStatusCompleted {
		t.Errorf("job status = %s, want completed", storedJob.Status)
	}
	if storedJob.Progress != 100 {
		t.Errorf("job progress = %d, want 100", storedJob.Progress)
	}
	if storedJob.TokensPrompt == 0 || storedJob.TokensComplete == 0 {
		t.Errorf("token usage not recorded: prompt=%d completion=%d", storedJob.TokensPrompt, storedJob.TokensComplete)
	}

	accepted, err := env.chapters.CountByState(context.Background(), project.ID, entity.ChapterStateAccepted)
	if err != nil {
		t.Fatal(err)
	}
	if int(accepted) != project.ExpectedChapters {
		t.Errorf("accepted chapter records = %d, want %d", accepted, project.ExpectedChapters)
	}

	counts := collectEvents(events)
	if counts[entity.EventJobStarted] != 1 {
		t.Errorf("job_started events = %d, want 1", counts[entity.EventJobStarted])
	}
	if counts[entity.EventChapterAccepted] != project.ExpectedChapters {
		t.Errorf("chapter_accepted events = %d, want %d", counts[entity.EventChapterAccepted], project.ExpectedChapters)
	}
	if counts[entity.EventProjectCompleted] != 1 {
		t.Errorf("project_completed events = %d, want 1", counts[entity.EventProjectCompleted])
	}
}

func TestOrchestratorSequentialChapters(t *testing.T) {
	var writerSeqs []int
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"内容。"}}
	writer.onCall = func(call int) {
		writerSeqs = append(writerSeqs, call+1)
	}
	env := newOrchestratorEnv(t, map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleMonitor: {role: entity.RoleMonitor, responses: []string{goodVerdictJSON}},
	})
	project, job := env.seedProject(t)

	if err := env.orch.Run(t.Context(), job); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 每章恰好一次写作调用，且严格递增
	if len(writerSeqs) != project.ExpectedChapters {
		t.Fatalf("writer calls = %d, want %d", len(writerSeqs), project.ExpectedChapters)
	}
	for i, seq := range writerSeqs {
		if seq != i+1 {
			t.Errorf("writer call order[%d] = %d, want %d", i, seq, i+1)
		}
	}
}

func TestOrchestratorChapterFailureFailsProject(t *testing.T) {
	env := newOrchestratorEnv(t, map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  {role: entity.RoleWriter, responses: []string{"内容。"}},
		entity.RoleMonitor: {role: entity.RoleMonitor, responses: []string{badVerdictJSON}},
	})
	project, job := env.seedProject(t)

	events, unsubscribe := env.bus.Subscribe()
	defer unsubscribe()

	if err := env.orch.Run(t.Context(), job); err == nil {
		t.Fatal("Run() should fail when first chapter is rejected")
	}

	got, _ := env.projects.GetByID(context.Background(), project.ID)
	if got.Status != entity.ProjectStatusFailed {
		t.Errorf("project status = %s, want failed", got.Status)
	}
	if got.FailureReason == "" {
		t.Error("failure reason should be recorded")
	}

	storedJob, _ := env.jobs.GetByID(context.Background(), job.ID)
	if storedJob.Status != entity.JobStatusFailed {
		t.Errorf("job status = %s, want failed", storedJob.Status)
	}

	counts := collectEvents(events)
	if counts[entity.EventChapterFailed] != 1 {
		t.Errorf("chapter_failed events = %d, want 1", counts[entity.EventChapterFailed])
	}
	if counts[entity.EventProjectFailed] != 1 {
		t.Errorf("project_failed events = %d, want 1", counts[entity.EventProjectFailed])
	}
	// 首章失败后不得推进后续章节
	if counts[entity.EventChapterAccepted] != 0 {
		t.Errorf("chapter_accepted events = %d, want 0", counts[entity.EventChapterAccepted])
	}
}

func TestOrchestratorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	writer := &fakeAgent{role: entity.RoleWriter, responses: []string{"内容。"}}
	writer.onCall = func(call int) {
		// 第二章写作时取消
		if call == 1 {
			cancel()
		}
	}
	env := newOrchestratorEnv(t, map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  writer,
		entity.RoleMonitor: {role: entity.RoleMonitor, responses: []string{goodVerdictJSON}},
	})
	project, job := env.seedProject(t)

	events, unsubscribe := env.bus.Subscribe()
	defer unsubscribe()

	err := env.orch.Run(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	storedJob, _ := env.jobs.GetByID(context.Background(), job.ID)
	if storedJob.Status != entity.JobStatusCancelled {
		t.Errorf("job status = %s, want cancelled", storedJob.Status)
	}

	got, _ := env.projects.GetByID(context.Background(), project.ID)
	if !got.IsStartable() {
		t.Errorf("cancelled project should be restartable, status = %s", got.Status)
	}

	counts := collectEvents(events)
	if counts[entity.EventProjectCancelled] != 1 {
		t.Errorf("project_cancelled events = %d, want 1", counts[entity.EventProjectCancelled])
	}

	// 取消后不得留下生成中/评估中的章节记录
	paged, err := env.chapters.ListByProject(context.Background(), project.ID, nil, repository.NewPagination(1, 100))
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range paged.Items {
		if !c.State.Terminal() {
			t.Errorf("chapter %d persisted in non-terminal state %s", c.SeqNum, c.State)
		}
	}
}

func TestOrchestratorPlansChaptersWithCoordinator(t *testing.T) {
	planJSON := `[
		{"index": 1, "title": "流亡开始", "outline": "主角被迫离开母星"},
		{"index": 2, "title": "星港相遇", "outline": "结识走私船长"}
	]`
	researcher := &fakeAgent{role: entity.RoleResearcher, responses: []string{"星际流亡背景设定。"}}
	env := newOrchestratorEnv(t, map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:      {role: entity.RoleWriter, responses: []string{"章节内容若干。"}},
		entity.RoleMonitor:     {role: entity.RoleMonitor, responses: []string{goodVerdictJSON}},
		entity.RoleCoordinator: {role: entity.RoleCoordinator, responses: []string{planJSON, "本章概要。"}},
		entity.RoleResearcher:  researcher,
	})
	project, job := env.seedProject(t)

	if err := env.orch.Run(t.Context(), job); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// researcher 只在规划前调研一次
	if researcher.callCount() != 1 {
		t.Errorf("researcher calls = %d, want 1", researcher.callCount())
	}

	got, err := env.projects.GetByID(context.Background(), project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ChapterPlans) != 2 {
		t.Fatalf("chapter plans = %d, want 2", len(got.ChapterPlans))
	}

	first, err := env.chapters.GetByProjectAndSeq(context.Background(), project.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if first.Title != "流亡开始" {
		t.Errorf("chapter 1 title = %q, want plan title", first.Title)
	}
	if first.Outline == "" {
		t.Error("chapter 1 outline should come from the plan")
	}

	// 已有大纲的项目不再触发规划
	coordinator := &fakeAgent{role: entity.RoleCoordinator, responses: []string{"不应被调用的规划输出"}}
	env2 := newOrchestratorEnv(t, map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:      {role: entity.RoleWriter, responses: []string{"章节内容若干。"}},
		entity.RoleMonitor:     {role: entity.RoleMonitor, responses: []string{goodVerdictJSON}},
		entity.RoleCoordinator: coordinator,
	})
	project2, job2 := env2.seedProject(t)
	project2.ChapterPlans = []entity.ChapterPlan{{Index: 1, Title: "预设第一章"}}
	if err := env2.projects.Update(context.Background(), project2); err != nil {
		t.Fatal(err)
	}
	if err := env2.orch.Run(t.Context(), job2); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// coordinator 只承担逐章概要，不得重新规划
	if coordinator.callCount() != project2.ExpectedChapters {
		t.Errorf("coordinator calls = %d, want %d summary calls only",
			coordinator.callCount(), project2.ExpectedChapters)
	}
}

func TestOrchestratorResumesAfterFailure(t *testing.T) {
	// 第一轮：第二章始终不过闸门
	monitor := &fakeAgent{role: entity.RoleMonitor}
	monitor.responses = []string{goodVerdictJSON, badVerdictJSON, badVerdictJSON, badVerdictJSON}
	env := newOrchestratorEnv(t, map[entity.AgentRole]*fakeAgent{
		entity.RoleWriter:  {role: entity.RoleWriter, responses: []string{"第一轮内容。"}},
		entity.RoleMonitor: monitor,
	})
	project, job := env.seedProject(t)

	if err := env.orch.Run(t.Context(), job); err == nil {
		t.Fatal("first run should fail on chapter 2")
	}

	got, _ := env.projects.GetByID(context.Background(), project.ID)
	if got.AcceptedChapters != 1 {
		t.Fatalf("accepted chapters after first run = %d, want 1", got.AcceptedChapters)
	}

	// 第二轮：监察恢复正常，从第二章继续
	monitor.mu.Lock()
	monitor.responses = []string{goodVerdictJSON}
	monitor.calls = 0
	monitor.mu.Unlock()

	job2 := entity.NewGenerationJob(project.ID, project.ExpectedChapters, nil)
	if err := env.jobs.Create(context.Background(), job2); err != nil {
		t.Fatal(err)
	}
	if err := env.orch.Run(t.Context(), job2); err != nil {
		t.Fatalf("second run error = %v", err)
	}

	got, _ = env.projects.GetByID(context.Background(), project.ID)
	if got.Status != entity.ProjectStatusCompleted {
		t.Errorf("project status = %s, want completed", got.Status)
	}

	// 第一章只在第一轮生成过，第二轮不得重写已验收章节
	paged, err := env.chapters.ListByProject(context.Background(), project.ID, nil, repository.NewPagination(1, 100))
	if err != nil {
		t.Fatal(err)
	}
	firstChapters := 0
	for _, c := range paged.Items {
		if c.SeqNum == 1 {
			firstChapters++
		}
	}
	if firstChapters != 1 {
		t.Errorf("chapter 1 records = %d, want 1", firstChapters)
	}
}
