// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
)

// EventRepository 进度事件仓储实现
type EventRepository struct {
	client *Client
}

// NewEventRepository 创建进度事件仓储
func NewEventRepository(client *Client) *EventRepository {
	return &EventRepository{client: client}
}

// Create 归档进度事件
func (r *EventRepository) Create(ctx context.Context, event *entity.ProgressEvent) error {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.Create")
	defer span.End()

	q := getQuerier(ctx, r.client)

	query := `
		INSERT INTO progress_events (id, job_id, project_id, type, chapter_index, total_chapters,
			attempt, message, tags, payload, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var payload interface{}
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := q.QueryRowContext(ctx, query,
		event.JobID, event.ProjectID, event.Type, event.ChapterIndex, event.TotalChapters,
		event.Attempt, event.Message, pq.Array([]string(event.Tags)), payload, createdAt,
	).Scan(&event.ID)

	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create progress event: %w", err)
	}

	return nil
}

// GetByID 根据 ID 获取事件
func (r *EventRepository) GetByID(ctx context.Context, id string) (*entity.ProgressEvent, error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.GetByID")
	defer span.End()

	q := getQuerier(ctx, r.client)

	query := selectEventColumns + ` WHERE id = $1`

	return r.scanEvent(q.QueryRowContext(ctx, query, id))
}

// ListByJob 获取任务事件列表（按时间正序）
func (r *EventRepository) ListByJob(ctx context.Context, jobID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ProgressEvent], error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.ListByJob")
	defer span.End()

	q := getQuerier(ctx, r.client)

	var total int64
	countQuery := `SELECT COUNT(*) FROM progress_events WHERE job_id = $1`
	if err := q.QueryRowContext(ctx, countQuery, jobID).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count progress events: %w", err)
	}

	query := selectEventColumns + `
		WHERE job_id = $1
		ORDER BY created_at ASC
		OFFSET $2 LIMIT $3
	`
	events, err := r.queryEvents(ctx, q, query, jobID, pagination.Offset(), pagination.Limit())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return repository.NewPagedResult(events, total, pagination), nil
}

// ListByProject 获取项目事件列表
func (r *EventRepository) ListByProject(ctx context.Context, projectID string, filter *repository.EventFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.ProgressEvent], error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.ListByProject")
	defer span.End()

	q := getQuerier(ctx, r.client)

	where := `WHERE project_id = $1`
	args := []interface{}{projectID}

	if filter != nil {
		if filter.Type != "" {
			args = append(args, filter.Type)
			where += fmt.Sprintf(" AND type = $%d", len(args))
		}
		if filter.JobID != "" {
			args = append(args, filter.JobID)
			where += fmt.Sprintf(" AND job_id = $%d", len(args))
		}
		if len(filter.Tags) > 0 {
			args = append(args, pq.Array(filter.Tags))
			where += fmt.Sprintf(" AND tags && $%d", len(args))
		}
		if !filter.After.IsZero() {
			args = append(args, filter.After)
			where += fmt.Sprintf(" AND created_at > $%d", len(args))
		}
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM progress_events ` + where
	if err := q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count progress events: %w", err)
	}

	args = append(args, pagination.Offset(), pagination.Limit())
	query := fmt.Sprintf("%s %s ORDER BY created_at ASC OFFSET $%d LIMIT $%d",
		selectEventColumns, where, len(args)-1, len(args))

	events, err := r.queryEvents(ctx, q, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return repository.NewPagedResult(events, total, pagination), nil
}

// SearchByTags 根据标签搜索事件
func (r *EventRepository) SearchByTags(ctx context.Context, projectID string, tags []string, limit int) ([]*entity.ProgressEvent, error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.SearchByTags")
	defer span.End()

	q := getQuerier(ctx, r.client)

	query := selectEventColumns + `
		WHERE project_id = $1 AND tags && $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	return r.queryEvents(ctx, q, query, projectID, pq.Array(tags), limit)
}

// DeleteOlderThan 清理指定时间之前的归档事件
func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.EventRepository.DeleteOlderThan")
	defer span.End()

	q := getQuerier(ctx, r.client)

	result, err := q.ExecContext(ctx, `DELETE FROM progress_events WHERE created_at < $1`, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete old progress events: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

const selectEventColumns = `
	SELECT id, job_id, project_id, type, chapter_index, total_chapters,
		attempt, message, tags, payload, created_at
	FROM progress_events`

// queryEvents 通用查询事件
func (r *EventRepository) queryEvents(ctx context.Context, q Querier, query string, args ...interface{}) ([]*entity.ProgressEvent, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress events: %w", err)
	}
	defer rows.Close()

	var events []*entity.ProgressEvent
	for rows.Next() {
		evt, err := scanEventFromRows(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}

	return events, rows.Err()
}

// scanEvent 扫描单行事件数据
func (r *EventRepository) scanEvent(row *sql.Row) (*entity.ProgressEvent, error) {
	var evt entity.ProgressEvent
	var tags pq.StringArray
	var payload []byte

	err := row.Scan(
		&evt.ID, &evt.JobID, &evt.ProjectID, &evt.Type, &evt.ChapterIndex, &evt.TotalChapters,
		&evt.Attempt, &evt.Message, &tags, &payload, &evt.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan progress event: %w", err)
	}

	evt.Tags = entity.StringSlice(tags)
	evt.Payload = payload

	return &evt, nil
}

// scanEventFromRows 从多行结果扫描
func scanEventFromRows(rows *sql.Rows) (*entity.ProgressEvent, error) {
	var evt entity.ProgressEvent
	var tags pq.StringArray
	var payload []byte

	err := rows.Scan(
		&evt.ID, &evt.JobID, &evt.ProjectID, &evt.Type, &evt.ChapterIndex, &evt.TotalChapters,
		&evt.Attempt, &evt.Message, &tags, &payload, &evt.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to scan progress event row: %w", err)
	}

	evt.Tags = entity.StringSlice(tags)
	evt.Payload = payload

	return &evt, nil
}
