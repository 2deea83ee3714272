// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
)

// ChapterRepository 章节结果仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节结果仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 创建章节结果
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.ChapterResult) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter result: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取章节结果
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.ChapterResult, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.ChapterResult
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter result: %w", err)
	}
	return &chapter, nil
}

// Update 更新章节结果
func (r *ChapterRepository) Update(ctx context.Context, chapter *entity.ChapterResult) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chapter result: %w", err)
	}
	return nil
}

// ListByProject 获取项目章节列表
func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string, filter *repository.ChapterFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.ChapterResult], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ChapterResult{}).Where("project_id = ?", projectID)

	if filter != nil {
		if filter.State != "" {
			query = query.Where("state = ?", filter.State)
		}
		if filter.JobID != "" {
			query = query.Where("job_id = ?", filter.JobID)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chapter results: %w", err)
	}

	var chapters []*entity.ChapterResult
	if err := query.Order("seq_num ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter results: %w", err)
	}

	return repository.NewPagedResult(chapters, total, pagination), nil
}

// GetByProjectAndSeq 根据项目和序号获取章节结果
func (r *ChapterRepository) GetByProjectAndSeq(ctx context.Context, projectID string, seqNum int) (*entity.ChapterResult, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByProjectAndSeq")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.ChapterResult
	if err := db.Where("project_id = ? AND seq_num = ?", projectID, seqNum).
		Order("created_at DESC").
		First(&chapter).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter result by seq: %w", err)
	}
	return &chapter, nil
}

// GetRecentAccepted 获取最近通过验收的章节（按序号倒序）
func (r *ChapterRepository) GetRecentAccepted(ctx context.Context, projectID string, limit int) ([]*entity.ChapterResult, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetRecentAccepted")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapters []*entity.ChapterResult

	if err := db.Where("project_id = ? AND state = ?", projectID, entity.ChapterStateAccepted).
		Order("seq_num DESC").
		Limit(limit).
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get recent accepted chapters: %w", err)
	}

	return chapters, nil
}

// CountByState 统计项目中指定状态的章节数量
func (r *ChapterRepository) CountByState(ctx context.Context, projectID string, state entity.ChapterState) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.CountByState")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.ChapterResult{}).
		Where("project_id = ? AND state = ?", projectID, state).
		Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count chapters by state: %w", err)
	}
	return count, nil
}
