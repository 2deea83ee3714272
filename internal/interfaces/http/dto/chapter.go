package dto

import (
	"time"

	"z-novel-orchestrator/internal/domain/entity"
)

// ChapterResponse 章节结果响应（列表视图，不含正文）
type ChapterResponse struct {
	ID          string                   `json:"id"`
	ProjectID   string                   `json:"project_id"`
	JobID       string                   `json:"job_id,omitempty"`
	SeqNum      int                      `json:"seq_num"`
	Title       string                   `json:"title,omitempty"`
	Summary     string                   `json:"summary,omitempty"`
	WordCount   int                      `json:"word_count"`
	State       string                   `json:"state"`
	Attempts    int                      `json:"attempts"`
	Verdict     *entity.QualityVerdict   `json:"verdict,omitempty"`
	Attribution *entity.AgentAttribution `json:"attribution,omitempty"`
	FailReason  string                   `json:"fail_reason,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// ChapterDetailResponse 章节结果响应（详情视图，含正文）
type ChapterDetailResponse struct {
	ChapterResponse
	Outline     string `json:"outline,omitempty"`
	ContentText string `json:"content_text,omitempty"`
}

// ToChapterResponse 实体转列表响应
func ToChapterResponse(ch *entity.ChapterResult) *ChapterResponse {
	return &ChapterResponse{
		ID:          ch.ID,
		ProjectID:   ch.ProjectID,
		JobID:       ch.JobID,
		SeqNum:      ch.SeqNum,
		Title:       ch.Title,
		Summary:     ch.Summary,
		WordCount:   ch.WordCount,
		State:       string(ch.State),
		Attempts:    ch.Attempts,
		Verdict:     ch.Verdict,
		Attribution: ch.Attribution,
		FailReason:  ch.FailReason,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
}

// ToChapterDetailResponse 实体转详情响应
func ToChapterDetailResponse(ch *entity.ChapterResult) *ChapterDetailResponse {
	return &ChapterDetailResponse{
		ChapterResponse: *ToChapterResponse(ch),
		Outline:         ch.Outline,
		ContentText:     ch.ContentText,
	}
}

// ToChapterResponses 实体列表转响应列表
func ToChapterResponses(items []*entity.ChapterResult) []*ChapterResponse {
	out := make([]*ChapterResponse, 0, len(items))
	for _, ch := range items {
		out = append(out, ToChapterResponse(ch))
	}
	return out
}
