// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"z-novel-orchestrator/internal/domain/entity"
)

// EventFilter 进度事件过滤条件
type EventFilter struct {
	Type  entity.ProgressEventType
	JobID string
	Tags  []string
	After time.Time
}

// EventRepository 进度事件仓储接口
type EventRepository interface {
	// Create 归档进度事件
	Create(ctx context.Context, event *entity.ProgressEvent) error

	// GetByID 根据 ID 获取事件
	GetByID(ctx context.Context, id string) (*entity.ProgressEvent, error)

	// ListByJob 获取任务事件列表（按时间正序）
	ListByJob(ctx context.Context, jobID string, pagination Pagination) (*PagedResult[*entity.ProgressEvent], error)

	// ListByProject 获取项目事件列表
	ListByProject(ctx context.Context, projectID string, filter *EventFilter, pagination Pagination) (*PagedResult[*entity.ProgressEvent], error)

	// SearchByTags 根据标签搜索事件
	SearchByTags(ctx context.Context, projectID string, tags []string, limit int) ([]*entity.ProgressEvent, error)

	// DeleteOlderThan 清理指定时间之前的归档事件，返回删除数量
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
