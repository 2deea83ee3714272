package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/interfaces/http/dto"
	"z-novel-orchestrator/pkg/errors"
)

// defaultTagSearchLimit 标签搜索默认返回条数
const defaultTagSearchLimit = 50

// EventHandler 进度事件归档查询处理器
type EventHandler struct {
	events repository.EventRepository
}

// NewEventHandler 创建事件处理器
func NewEventHandler(events repository.EventRepository) *EventHandler {
	return &EventHandler{events: events}
}

// ListByProject 获取项目进度事件归档
// GET /v1/projects/:pid/events?type=&job_id=&tags=&after=&page=&page_size=
func (h *EventHandler) ListByProject(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	filter := &repository.EventFilter{
		Type:  entity.ProgressEventType(c.Query("type")),
		JobID: c.Query("job_id"),
	}
	if raw := c.Query("tags"); raw != "" {
		filter.Tags = splitTags(raw)
	}
	if raw := c.Query("after"); raw != "" {
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(c, errors.ErrInvalidParam.WithDetail("after must be RFC3339 formatted"))
			return
		}
		filter.After = after
	}

	page := dto.BindPage(c)
	result, err := h.events.ListByProject(c.Request.Context(), projectID, filter,
		repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		writeError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.ToEventResponses(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// ListByJob 获取任务进度事件归档（按时间正序，供回放）
// GET /v1/jobs/:jid/events?page=&page_size=
func (h *EventHandler) ListByJob(c *gin.Context) {
	jobID, err := dto.BindJobID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	page := dto.BindPage(c)
	result, err := h.events.ListByJob(c.Request.Context(), jobID,
		repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		writeError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.ToEventResponses(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// SearchByTags 根据标签搜索项目事件
// GET /v1/projects/:pid/events/search?tags=a,b&limit=
func (h *EventHandler) SearchByTags(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	tags := splitTags(c.Query("tags"))
	if len(tags) == 0 {
		writeError(c, errors.ErrInvalidParam.WithDetail("tags query parameter is required"))
		return
	}

	limit := defaultTagSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(c, errors.ErrInvalidParam.WithDetail("limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	events, err := h.events.SearchByTags(c.Request.Context(), projectID, tags, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	dto.Success(c, dto.ToEventResponses(events))
}

func splitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
