package generation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/infrastructure/agent"
)

// fakeAgent 按调用次序返回预设响应的 Completer
type fakeAgent struct {
	mu        sync.Mutex
	role      entity.AgentRole
	responses []string
	err       error
	calls     int
	onCall    func(call int)
}

func (f *fakeAgent) Role() entity.AgentRole { return f.role }
func (f *fakeAgent) Provider() string       { return "fake" }
func (f *fakeAgent) Model() string          { return "fake-model" }

func (f *fakeAgent) Complete(ctx context.Context, systemPrompt, userPrompt string) (*agent.Outcome, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}

	text := ""
	if len(f.responses) > 0 {
		idx := call
		if idx >= len(f.responses) {
			idx = len(f.responses) - 1
		}
		text = f.responses[idx]
	}
	return &agent.Outcome{
		Text:             text,
		Provider:         "fake",
		Model:            "fake-model",
		PromptTokens:     10,
		CompletionTokens: 100,
	}, nil
}

func (f *fakeAgent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// newTestRegistry 从 fake Agent 构建注册表
func newTestRegistry(agents map[entity.AgentRole]*fakeAgent) *agent.Registry {
	completers := make(map[entity.AgentRole]agent.Completer, len(agents))
	for role, a := range agents {
		completers[role] = a
	}
	return agent.NewRegistryFromAgents(completers)
}

// memProjectRepo 内存项目仓储
type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*entity.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: make(map[string]*entity.Project)}
}

func (r *memProjectRepo) Create(ctx context.Context, p *entity.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = fmt.Sprintf("project-%d", len(r.projects)+1)
	}
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *memProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (r *memProjectRepo) Update(ctx context.Context, p *entity.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

func (r *memProjectRepo) List(ctx context.Context, filter *repository.ProjectFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	return repository.NewPagedResult[*entity.Project](nil, 0, pagination), nil
}

func (r *memProjectRepo) UpdateStatus(ctx context.Context, id string, status entity.ProjectStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.projects[id]; ok {
		p.Status = status
	}
	return nil
}

func (r *memProjectRepo) GetStats(ctx context.Context, id string) (*repository.ProjectStats, error) {
	return &repository.ProjectStats{}, nil
}

// memChapterRepo 内存章节仓储
type memChapterRepo struct {
	mu       sync.Mutex
	chapters map[string]*entity.ChapterResult
	seq      int
}

func newMemChapterRepo() *memChapterRepo {
	return &memChapterRepo{chapters: make(map[string]*entity.ChapterResult)}
}

func (r *memChapterRepo) Create(ctx context.Context, c *entity.ChapterResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		r.seq++
		c.ID = fmt.Sprintf("chapter-%d", r.seq)
	}
	cp := *c
	r.chapters[c.ID] = &cp
	return nil
}

func (r *memChapterRepo) GetByID(ctx context.Context, id string) (*entity.ChapterResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chapters[id]
	if !ok {
		return nil, fmt.Errorf("chapter %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (r *memChapterRepo) Update(ctx context.Context, c *entity.ChapterResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.chapters[c.ID] = &cp
	return nil
}

func (r *memChapterRepo) ListByProject(ctx context.Context, projectID string, filter *repository.ChapterFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.ChapterResult], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*entity.ChapterResult
	for _, c := range r.chapters {
		if c.ProjectID == projectID {
			cp := *c
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SeqNum < items[j].SeqNum })
	return repository.NewPagedResult(items, int64(len(items)), pagination), nil
}

func (r *memChapterRepo) GetByProjectAndSeq(ctx context.Context, projectID string, seqNum int) (*entity.ChapterResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chapters {
		if c.ProjectID == projectID && c.SeqNum == seqNum {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("chapter not found")
}

func (r *memChapterRepo) GetRecentAccepted(ctx context.Context, projectID string, limit int) ([]*entity.ChapterResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var accepted []*entity.ChapterResult
	for _, c := range r.chapters {
		if c.ProjectID == projectID && c.State == entity.ChapterStateAccepted {
			cp := *c
			accepted = append(accepted, &cp)
		}
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].SeqNum > accepted[j].SeqNum })
	if len(accepted) > limit {
		accepted = accepted[:limit]
	}
	return accepted, nil
}

func (r *memChapterRepo) CountByState(ctx context.Context, projectID string, state entity.ChapterState) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, c := range r.chapters {
		if c.ProjectID == projectID && c.State == state {
			count++
		}
	}
	return count, nil
}

// memJobRepo 内存任务仓储
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*entity.GenerationJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[string]*entity.GenerationJob)}
}

func (r *memJobRepo) Create(ctx context.Context, j *entity.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j.ID == "" {
		j.ID = fmt.Sprintf("job-%d", len(r.jobs)+1)
	}
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *memJobRepo) GetByID(ctx context.Context, id string) (*entity.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) Update(ctx context.Context, j *entity.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *memJobRepo) ListByProject(ctx context.Context, projectID string, filter *repository.JobFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.GenerationJob], error) {
	return repository.NewPagedResult[*entity.GenerationJob](nil, 0, pagination), nil
}

func (r *memJobRepo) GetActiveByProject(ctx context.Context, projectID string) (*entity.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ProjectID == projectID && j.IsActive() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memJobRepo) UpdateStatus(ctx context.Context, id string, status entity.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.Status = status
	}
	return nil
}

func (r *memJobRepo) UpdateProgress(ctx context.Context, id string, currentChapter, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.CurrentChapter = currentChapter
		j.Progress = progress
	}
	return nil
}

func (r *memJobRepo) GetRunningJobs(ctx context.Context) ([]*entity.GenerationJob, error) {
	return nil, nil
}

func (r *memJobRepo) GetJobStats(ctx context.Context, projectID string) (*repository.JobStats, error) {
	return &repository.JobStats{}, nil
}

// passthroughTx 直接执行回调，不提供真实事务语义
type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
