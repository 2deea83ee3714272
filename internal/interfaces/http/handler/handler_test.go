package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/infrastructure/agent"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProjectRepo 固定返回预设项目的仓储，未命中时与线上仓储一致返回 (nil, nil)
type stubProjectRepo struct {
	project *entity.Project
}

func (r *stubProjectRepo) Create(ctx context.Context, p *entity.Project) error { return nil }
func (r *stubProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	return r.project, nil
}
func (r *stubProjectRepo) Update(ctx context.Context, p *entity.Project) error { return nil }
func (r *stubProjectRepo) List(ctx context.Context, filter *repository.ProjectFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	return repository.NewPagedResult[*entity.Project](nil, 0, pagination), nil
}
func (r *stubProjectRepo) UpdateStatus(ctx context.Context, id string, status entity.ProjectStatus) error {
	return nil
}
func (r *stubProjectRepo) GetStats(ctx context.Context, id string) (*repository.ProjectStats, error) {
	return &repository.ProjectStats{}, nil
}

type stubChapterRepo struct {
	chapter *entity.ChapterResult
}

func (r *stubChapterRepo) Create(ctx context.Context, c *entity.ChapterResult) error { return nil }
func (r *stubChapterRepo) GetByID(ctx context.Context, id string) (*entity.ChapterResult, error) {
	return r.chapter, nil
}
func (r *stubChapterRepo) Update(ctx context.Context, c *entity.ChapterResult) error { return nil }
func (r *stubChapterRepo) ListByProject(ctx context.Context, projectID string, filter *repository.ChapterFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.ChapterResult], error) {
	return repository.NewPagedResult[*entity.ChapterResult](nil, 0, pagination), nil
}
func (r *stubChapterRepo) GetByProjectAndSeq(ctx context.Context, projectID string, seqNum int) (*entity.ChapterResult, error) {
	return r.chapter, nil
}
func (r *stubChapterRepo) GetRecentAccepted(ctx context.Context, projectID string, limit int) ([]*entity.ChapterResult, error) {
	return nil, nil
}
func (r *stubChapterRepo) CountByState(ctx context.Context, projectID string, state entity.ChapterState) (int64, error) {
	return 0, nil
}

func newGinContext(t *testing.T, method, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	return c, w
}

func TestProjectGetUnknownIDReturnsNotFound(t *testing.T) {
	h := NewProjectHandler(&stubProjectRepo{})

	c, w := newGinContext(t, http.MethodGet, "",
		gin.Params{{Key: "pid", Value: "5f0c2a4e-0000-0000-0000-000000000000"}})
	h.Get(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestProjectUpdateUnknownIDReturnsNotFound(t *testing.T) {
	h := NewProjectHandler(&stubProjectRepo{})

	c, w := newGinContext(t, http.MethodPatch, `{"title":"新标题"}`,
		gin.Params{{Key: "pid", Value: "missing"}})
	h.Update(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestChapterGetUnknownSeqReturnsNotFound(t *testing.T) {
	h := NewChapterHandler(&stubChapterRepo{})

	c, w := newGinContext(t, http.MethodGet, "",
		gin.Params{{Key: "pid", Value: "p1"}, {Key: "seq", Value: "3"}})
	h.Get(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStartGenerationUnknownProjectReturnsNotFound(t *testing.T) {
	h := NewGenerationHandler(&stubProjectRepo{}, nil, nil,
		agent.NewRegistryFromAgents(nil), nil, nil)

	c, w := newGinContext(t, http.MethodPost, "",
		gin.Params{{Key: "pid", Value: "missing"}})
	h.Start(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStartGenerationWithoutWriterIsRefused(t *testing.T) {
	project := entity.NewProject("测试小说", "前提", entity.GenreFantasy, entity.LengthShort)
	project.ID = "project-1"
	h := NewGenerationHandler(&stubProjectRepo{project: project}, nil, nil,
		agent.NewRegistryFromAgents(nil), nil, nil)

	c, w := newGinContext(t, http.MethodPost, "",
		gin.Params{{Key: "pid", Value: project.ID}})
	h.Start(c)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
