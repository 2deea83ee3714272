package dto

import (
	"time"

	"z-novel-orchestrator/internal/domain/entity"
)

// StartGenerationRequest 发起生成请求
type StartGenerationRequest struct {
	// FromChapter 从指定章节继续，0 表示自动续传
	FromChapter int `json:"from_chapter"`
}

// CancelJobRequest 取消任务请求
type CancelJobRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// JobResponse 生成任务响应
type JobResponse struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"project_id"`
	Status         string     `json:"status"`
	TotalChapters  int        `json:"total_chapters"`
	CurrentChapter int        `json:"current_chapter"`
	Progress       int        `json:"progress"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
	TokensPrompt   int        `json:"tokens_prompt,omitempty"`
	TokensComplete int        `json:"tokens_completion,omitempty"`
	DurationMs     int        `json:"duration_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ToJobResponse 实体转响应
func ToJobResponse(j *entity.GenerationJob) *JobResponse {
	return &JobResponse{
		ID:             j.ID,
		ProjectID:      j.ProjectID,
		Status:         string(j.Status),
		TotalChapters:  j.TotalChapters,
		CurrentChapter: j.CurrentChapter,
		Progress:       j.Progress,
		ErrorMessage:   j.ErrorMessage,
		CancelReason:   j.CancelReason,
		TokensPrompt:   j.TokensPrompt,
		TokensComplete: j.TokensComplete,
		DurationMs:     j.DurationMs,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// ToJobResponses 实体列表转响应列表
func ToJobResponses(items []*entity.GenerationJob) []*JobResponse {
	out := make([]*JobResponse, 0, len(items))
	for _, j := range items {
		out = append(out, ToJobResponse(j))
	}
	return out
}
