package dto

import (
	"encoding/json"
	"time"

	"z-novel-orchestrator/internal/domain/entity"
)

// EventResponse 进度事件响应
type EventResponse struct {
	ID            string          `json:"id"`
	JobID         string          `json:"job_id"`
	ProjectID     string          `json:"project_id"`
	Type          string          `json:"type"`
	ChapterIndex  int             `json:"chapter_index,omitempty"`
	TotalChapters int             `json:"total_chapters,omitempty"`
	Attempt       int             `json:"attempt,omitempty"`
	Progress      float64         `json:"progress"`
	Message       string          `json:"message,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToEventResponse 实体转响应
func ToEventResponse(e *entity.ProgressEvent) *EventResponse {
	return &EventResponse{
		ID:            e.ID,
		JobID:         e.JobID,
		ProjectID:     e.ProjectID,
		Type:          string(e.Type),
		ChapterIndex:  e.ChapterIndex,
		TotalChapters: e.TotalChapters,
		Attempt:       e.Attempt,
		Progress:      e.ProgressPercent(),
		Message:       e.Message,
		Tags:          e.Tags,
		Payload:       e.Payload,
		CreatedAt:     e.CreatedAt,
	}
}

// ToEventResponses 实体列表转响应列表
func ToEventResponses(items []*entity.ProgressEvent) []*EventResponse {
	out := make([]*EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, ToEventResponse(e))
	}
	return out
}
