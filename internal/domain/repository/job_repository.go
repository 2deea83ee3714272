// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-orchestrator/internal/domain/entity"
)

// JobFilter 任务过滤条件
type JobFilter struct {
	Status entity.JobStatus
}

// JobRepository 生成任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.GenerationJob) error

	// GetByID 根据 ID 获取任务
	GetByID(ctx context.Context, id string) (*entity.GenerationJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.GenerationJob) error

	// ListByProject 获取项目任务列表
	ListByProject(ctx context.Context, projectID string, filter *JobFilter, pagination Pagination) (*PagedResult[*entity.GenerationJob], error)

	// GetActiveByProject 获取项目当前活跃任务（pending 或 running），无则返回 nil
	GetActiveByProject(ctx context.Context, projectID string) (*entity.GenerationJob, error)

	// UpdateStatus 更新任务状态
	UpdateStatus(ctx context.Context, id string, status entity.JobStatus) error

	// UpdateProgress 更新任务进度与当前章节
	UpdateProgress(ctx context.Context, id string, currentChapter, progress int) error

	// GetRunningJobs 获取运行中任务
	GetRunningJobs(ctx context.Context) ([]*entity.GenerationJob, error)

	// GetJobStats 获取任务统计信息
	GetJobStats(ctx context.Context, projectID string) (*JobStats, error)
}

// JobStats 任务统计信息
type JobStats struct {
	TotalJobs       int64 `json:"total_jobs"`
	PendingJobs     int64 `json:"pending_jobs"`
	RunningJobs     int64 `json:"running_jobs"`
	CompletedJobs   int64 `json:"completed_jobs"`
	FailedJobs      int64 `json:"failed_jobs"`
	CancelledJobs   int64 `json:"cancelled_jobs"`
	TotalTokensUsed int64 `json:"total_tokens_used"`
}
