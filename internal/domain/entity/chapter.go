// Package entity 定义领域实体
package entity

import (
	"fmt"
	"time"
)

// ChapterState 章节生成状态
type ChapterState string

const (
	ChapterStatePending      ChapterState = "pending"
	ChapterStateGenerating   ChapterState = "generating"
	ChapterStateEvaluating   ChapterState = "evaluating"
	ChapterStateRegenerating ChapterState = "regenerating"
	ChapterStateAccepted     ChapterState = "accepted"
	ChapterStateFailed       ChapterState = "failed"
)

// chapterTransitions 合法的状态迁移表
var chapterTransitions = map[ChapterState][]ChapterState{
	ChapterStatePending:      {ChapterStateGenerating},
	ChapterStateGenerating:   {ChapterStateEvaluating, ChapterStateFailed},
	ChapterStateEvaluating:   {ChapterStateAccepted, ChapterStateRegenerating, ChapterStateFailed},
	ChapterStateRegenerating: {ChapterStateGenerating},
	ChapterStateAccepted:     {},
	ChapterStateFailed:       {},
}

// CanTransitionTo 检查状态迁移是否合法
func (s ChapterState) CanTransitionTo(target ChapterState) bool {
	for _, allowed := range chapterTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal 是否为终态
func (s ChapterState) Terminal() bool {
	return s == ChapterStateAccepted || s == ChapterStateFailed
}

// AgentAttribution 章节生成的 Agent 归属信息
type AgentAttribution struct {
	WriterProvider   string `json:"writer_provider,omitempty"`
	WriterModel      string `json:"writer_model,omitempty"`
	EditorProvider   string `json:"editor_provider,omitempty"`
	EditorModel      string `json:"editor_model,omitempty"`
	MonitorProvider  string `json:"monitor_provider,omitempty"`
	MonitorModel     string `json:"monitor_model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// ChapterResult 章节生成结果实体
type ChapterResult struct {
	ID          string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID   string            `json:"project_id" gorm:"type:uuid;index;not null"`
	JobID       string            `json:"job_id,omitempty" gorm:"type:uuid;index"`
	SeqNum      int               `json:"seq_num" gorm:"not null"`
	Title       string            `json:"title,omitempty" gorm:"type:varchar(255)"`
	Outline     string            `json:"outline,omitempty" gorm:"type:text"`
	ContentText string            `json:"content_text,omitempty" gorm:"type:text"`
	Summary     string            `json:"summary,omitempty" gorm:"type:text"`
	WordCount   int               `json:"word_count" gorm:"default:0"`
	State       ChapterState      `json:"state" gorm:"type:varchar(50);default:'pending'"`
	Attempts    int               `json:"attempts" gorm:"default:0"`
	Verdict     *QualityVerdict   `json:"verdict,omitempty" gorm:"type:jsonb;serializer:json"`
	Attribution *AgentAttribution `json:"attribution,omitempty" gorm:"type:jsonb;serializer:json"`
	FailReason  string            `json:"fail_reason,omitempty" gorm:"type:text"`
	CreatedAt   time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ChapterResult) TableName() string {
	return "chapter_results"
}

// NewChapterResult 创建新的章节结果
func NewChapterResult(projectID, jobID string, seqNum int, plan ChapterPlan) *ChapterResult {
	now := time.Now()
	return &ChapterResult{
		ProjectID: projectID,
		JobID:     jobID,
		SeqNum:    seqNum,
		Title:     plan.Title,
		Outline:   plan.Outline,
		State:     ChapterStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transition 执行状态迁移，非法迁移返回错误
func (c *ChapterResult) transition(target ChapterState) error {
	if !c.State.CanTransitionTo(target) {
		return fmt.Errorf("invalid chapter state transition: %s -> %s", c.State, target)
	}
	c.State = target
	c.UpdatedAt = time.Now()
	return nil
}

// BeginGeneration 开始生成，计入一次尝试
func (c *ChapterResult) BeginGeneration() error {
	if err := c.transition(ChapterStateGenerating); err != nil {
		return err
	}
	c.Attempts++
	return nil
}

// BeginEvaluation 进入评估阶段并记录草稿内容
func (c *ChapterResult) BeginEvaluation(content string) error {
	if err := c.transition(ChapterStateEvaluating); err != nil {
		return err
	}
	c.ContentText = content
	c.WordCount = len([]rune(content))
	return nil
}

// Accept 章节通过质量闸门
func (c *ChapterResult) Accept(verdict *QualityVerdict) error {
	if err := c.transition(ChapterStateAccepted); err != nil {
		return err
	}
	c.Verdict = verdict
	return nil
}

// RequestRegeneration 质量不达标，要求重写
func (c *ChapterResult) RequestRegeneration(verdict *QualityVerdict) error {
	if err := c.transition(ChapterStateRegenerating); err != nil {
		return err
	}
	c.Verdict = verdict
	return nil
}

// Fail 章节生成失败
func (c *ChapterResult) Fail(reason string) error {
	if err := c.transition(ChapterStateFailed); err != nil {
		return err
	}
	c.FailReason = reason
	return nil
}

// SetSummary 记录章节摘要，用于后续章节的上下文
func (c *ChapterResult) SetSummary(summary string) {
	c.Summary = summary
	c.UpdatedAt = time.Now()
}
