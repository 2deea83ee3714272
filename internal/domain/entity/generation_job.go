// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// GenerationJob 小说生成任务
// 一个任务覆盖一个项目的完整生成流程，同一项目同时只允许一个活跃任务
type GenerationJob struct {
	ID             string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID      string          `json:"project_id" gorm:"type:uuid;index;not null"`
	Status         JobStatus       `json:"status" gorm:"type:varchar(50);default:'pending'"`
	TotalChapters  int             `json:"total_chapters"`
	CurrentChapter int             `json:"current_chapter"` // 正在处理的章节序号，从 1 开始
	Progress       int             `json:"progress"`        // 任务进度 (0-100)
	InputParams    json.RawMessage `json:"input_params,omitempty" gorm:"type:jsonb"`
	ErrorMessage   string          `json:"error_message,omitempty" gorm:"type:text"`
	CancelReason   string          `json:"cancel_reason,omitempty" gorm:"type:varchar(255)"`
	TokensPrompt   int             `json:"tokens_prompt,omitempty"`
	TokensComplete int             `json:"tokens_completion,omitempty"`
	DurationMs     int             `json:"duration_ms,omitempty"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// NewGenerationJob 创建新任务
func NewGenerationJob(projectID string, totalChapters int, inputParams json.RawMessage) *GenerationJob {
	now := time.Now()
	return &GenerationJob{
		ProjectID:     projectID,
		Status:        JobStatusPending,
		TotalChapters: totalChapters,
		InputParams:   inputParams,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Start 开始执行任务
func (j *GenerationJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete 完成任务
func (j *GenerationJob) Complete() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Fail 任务失败
func (j *GenerationJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Cancel 取消任务
func (j *GenerationJob) Cancel(reason string) {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CancelReason = reason
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// IsActive 检查任务是否仍在进行（pending 或 running）
func (j *GenerationJob) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// IsTerminal 检查任务是否已到终态
func (j *GenerationJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed ||
		j.Status == JobStatusCancelled
}

// AdvanceChapter 推进到下一章并刷新进度
func (j *GenerationJob) AdvanceChapter(chapter int) {
	j.CurrentChapter = chapter
	if j.TotalChapters > 0 {
		progress := (chapter - 1) * 100 / j.TotalChapters
		j.UpdateProgress(progress)
	}
	j.UpdatedAt = time.Now()
}

// UpdateProgress 更新任务进度
func (j *GenerationJob) UpdateProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
}

// AddTokenUsage 累加 token 用量
func (j *GenerationJob) AddTokenUsage(promptTokens, completionTokens int) {
	j.TokensPrompt += promptTokens
	j.TokensComplete += completionTokens
}
