// Package entity 定义领域实体
package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringSlice 用于 GORM JSON 序列化的字符串切片
type StringSlice []string

// Value 实现 driver.Valuer 接口
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner 接口
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported scan type %T for StringSlice", value)
	}
	return json.Unmarshal(b, s)
}

// ProgressEventType 进度事件类型
type ProgressEventType string

const (
	EventJobQueued           ProgressEventType = "job_queued"
	EventJobStarted          ProgressEventType = "job_started"
	EventChapterStarted      ProgressEventType = "chapter_started"
	EventChapterRegenerating ProgressEventType = "chapter_regenerating"
	EventChapterAccepted     ProgressEventType = "chapter_accepted"
	EventChapterFailed       ProgressEventType = "chapter_failed"
	EventProjectCompleted    ProgressEventType = "project_completed"
	EventProjectFailed       ProgressEventType = "project_failed"
	EventProjectCancelled    ProgressEventType = "project_cancelled"
)

// AllProgressEventTypes 返回全部进度事件类型
func AllProgressEventTypes() []ProgressEventType {
	return []ProgressEventType{
		EventJobQueued,
		EventJobStarted,
		EventChapterStarted,
		EventChapterRegenerating,
		EventChapterAccepted,
		EventChapterFailed,
		EventProjectCompleted,
		EventProjectFailed,
		EventProjectCancelled,
	}
}

// ProgressEvent 生成进度事件
// 在事件总线上实时分发，同时归档到数据库供回放查询
type ProgressEvent struct {
	ID            string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	JobID         string            `json:"job_id" gorm:"type:uuid;index;not null"`
	ProjectID     string            `json:"project_id" gorm:"type:uuid;index;not null"`
	Type          ProgressEventType `json:"type" gorm:"type:varchar(50);not null"`
	ChapterIndex  int               `json:"chapter_index,omitempty"`
	TotalChapters int               `json:"total_chapters,omitempty"`
	Attempt       int               `json:"attempt,omitempty"`
	Message       string            `json:"message,omitempty" gorm:"type:text"`
	Tags          StringSlice       `json:"tags,omitempty" gorm:"type:text[]"`
	Payload       json.RawMessage   `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName 指定表名
func (ProgressEvent) TableName() string {
	return "progress_events"
}

// NewProgressEvent 创建进度事件
func NewProgressEvent(jobID, projectID string, typ ProgressEventType) *ProgressEvent {
	return &ProgressEvent{
		JobID:     jobID,
		ProjectID: projectID,
		Type:      typ,
		Tags:      StringSlice{},
		CreatedAt: time.Now(),
	}
}

// WithChapter 附加章节位置信息
func (e *ProgressEvent) WithChapter(index, total int) *ProgressEvent {
	e.ChapterIndex = index
	e.TotalChapters = total
	return e
}

// WithAttempt 附加尝试次数
func (e *ProgressEvent) WithAttempt(attempt int) *ProgressEvent {
	e.Attempt = attempt
	return e
}

// WithMessage 附加说明信息
func (e *ProgressEvent) WithMessage(msg string) *ProgressEvent {
	e.Message = msg
	return e
}

// AddTag 添加标签
func (e *ProgressEvent) AddTag(tag string) {
	for _, t := range e.Tags {
		if t == tag {
			return
		}
	}
	e.Tags = append(e.Tags, tag)
}

// ProgressPercent 根据章节位置计算进度百分比
func (e *ProgressEvent) ProgressPercent() float64 {
	if e.TotalChapters <= 0 {
		return 0
	}
	pct := float64(e.ChapterIndex) / float64(e.TotalChapters) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
