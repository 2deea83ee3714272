// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-orchestrator/internal/domain/entity"
)

// ChapterFilter 章节过滤条件
type ChapterFilter struct {
	State entity.ChapterState
	JobID string
}

// ChapterRepository 章节结果仓储接口
type ChapterRepository interface {
	// Create 创建章节结果
	Create(ctx context.Context, chapter *entity.ChapterResult) error

	// GetByID 根据 ID 获取章节结果
	GetByID(ctx context.Context, id string) (*entity.ChapterResult, error)

	// Update 更新章节结果
	Update(ctx context.Context, chapter *entity.ChapterResult) error

	// ListByProject 获取项目章节列表
	ListByProject(ctx context.Context, projectID string, filter *ChapterFilter, pagination Pagination) (*PagedResult[*entity.ChapterResult], error)

	// GetByProjectAndSeq 根据项目和序号获取章节结果
	GetByProjectAndSeq(ctx context.Context, projectID string, seqNum int) (*entity.ChapterResult, error)

	// GetRecentAccepted 获取最近通过验收的章节（按序号倒序）
	GetRecentAccepted(ctx context.Context, projectID string, limit int) ([]*entity.ChapterResult, error)

	// CountByState 统计项目中指定状态的章节数量
	CountByState(ctx context.Context, projectID string, state entity.ChapterState) (int64, error)
}
