package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/interfaces/http/dto"
	"z-novel-orchestrator/pkg/errors"
)

// ChapterHandler 章节结果处理器
type ChapterHandler struct {
	chapters repository.ChapterRepository
}

// NewChapterHandler 创建章节处理器
func NewChapterHandler(chapters repository.ChapterRepository) *ChapterHandler {
	return &ChapterHandler{chapters: chapters}
}

// List 获取项目章节列表
// GET /v1/projects/:pid/chapters?state=&job_id=&page=&page_size=
func (h *ChapterHandler) List(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	page := dto.BindPage(c)
	filter := &repository.ChapterFilter{
		State: entity.ChapterState(c.Query("state")),
		JobID: c.Query("job_id"),
	}

	result, err := h.chapters.ListByProject(c.Request.Context(), projectID, filter,
		repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		writeError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.ToChapterResponses(result.Items),
		dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Get 按序号获取章节详情（含正文）
// GET /v1/projects/:pid/chapters/:seq
func (h *ChapterHandler) Get(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	seq, err := dto.BindChapterSeq(c)
	if err != nil {
		writeError(c, err)
		return
	}

	chapter, err := h.chapters.GetByProjectAndSeq(c.Request.Context(), projectID, seq)
	if err != nil {
		writeError(c, err)
		return
	}
	if chapter == nil {
		writeError(c, errors.ErrChapterNotFound)
		return
	}

	dto.Success(c, dto.ToChapterDetailResponse(chapter))
}
