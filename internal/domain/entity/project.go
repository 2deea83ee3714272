// Package entity 定义领域实体
package entity

import (
	"time"
)

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusGenerating ProjectStatus = "generating"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
	ProjectStatusArchived   ProjectStatus = "archived"
)

// Genre 小说题材
type Genre string

const (
	GenreFantasy        Genre = "fantasy"
	GenreScienceFiction Genre = "science_fiction"
	GenreMystery        Genre = "mystery"
	GenreRomance        Genre = "romance"
	GenreHorror         Genre = "horror"
	GenreAdventure      Genre = "adventure"
	GenreHistorical     Genre = "historical"
	GenreContemporary   Genre = "contemporary"
)

// NovelLength 小说篇幅
type NovelLength string

const (
	LengthShort  NovelLength = "short"
	LengthMedium NovelLength = "medium"
	LengthLong   NovelLength = "long"
	LengthEpic   NovelLength = "epic"
)

// ExpectedChapters 根据篇幅返回预期章节数
func (l NovelLength) ExpectedChapters() int {
	switch l {
	case LengthShort:
		return 5
	case LengthMedium:
		return 15
	case LengthLong:
		return 30
	case LengthEpic:
		return 50
	default:
		return 15
	}
}

// Valid 检查篇幅取值是否合法
func (l NovelLength) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong, LengthEpic:
		return true
	}
	return false
}

// Valid 检查题材取值是否合法
func (g Genre) Valid() bool {
	switch g {
	case GenreFantasy, GenreScienceFiction, GenreMystery, GenreRomance,
		GenreHorror, GenreAdventure, GenreHistorical, GenreContemporary:
		return true
	}
	return false
}

// ChapterPlan 章节规划条目
type ChapterPlan struct {
	Index     int      `json:"index"`
	Title     string   `json:"title"`
	Outline   string   `json:"outline,omitempty"`
	KeyPoints []string `json:"key_points,omitempty"`
}

// ProjectSettings 项目设置
type ProjectSettings struct {
	ChapterWords  int     `json:"chapter_words,omitempty"`
	WritingStyle  string  `json:"writing_style,omitempty"`
	POV           string  `json:"pov,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	SummaryWindow int     `json:"summary_window,omitempty"`
}

// Project 小说项目实体
type Project struct {
	ID               string           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title            string           `json:"title" gorm:"type:varchar(255);not null"`
	Premise          string           `json:"premise,omitempty" gorm:"type:text"`
	Genre            Genre            `json:"genre,omitempty" gorm:"type:varchar(100)"`
	Length           NovelLength      `json:"length" gorm:"type:varchar(50);default:'medium'"`
	ExpectedChapters int              `json:"expected_chapters"`
	AcceptedChapters int              `json:"accepted_chapters" gorm:"default:0"`
	CurrentWordCount int              `json:"current_word_count" gorm:"default:0"`
	ChapterPlans     []ChapterPlan    `json:"chapter_plans,omitempty" gorm:"type:jsonb;serializer:json"`
	Settings         *ProjectSettings `json:"settings,omitempty" gorm:"type:jsonb;serializer:json"`
	Status           ProjectStatus    `json:"status" gorm:"type:varchar(50);default:'draft'"`
	FailureReason    string           `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt        time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// NewProject 创建新项目
func NewProject(title, premise string, genre Genre, length NovelLength) *Project {
	now := time.Now()
	if !length.Valid() {
		length = LengthMedium
	}
	return &Project{
		Title:            title,
		Premise:          premise,
		Genre:            genre,
		Length:           length,
		ExpectedChapters: length.ExpectedChapters(),
		AcceptedChapters: 0,
		CurrentWordCount: 0,
		Settings:         &ProjectSettings{},
		Status:           ProjectStatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// StartGeneration 项目进入生成状态
func (p *Project) StartGeneration() {
	p.Status = ProjectStatusGenerating
	p.FailureReason = ""
	p.UpdatedAt = time.Now()
}

// IsStartable 检查项目是否可以发起生成
func (p *Project) IsStartable() bool {
	return p.Status == ProjectStatusDraft || p.Status == ProjectStatusFailed ||
		p.Status == ProjectStatusGenerating
}

// RecordChapterAccepted 记录一章通过验收
func (p *Project) RecordChapterAccepted(wordCount int) {
	p.AcceptedChapters++
	p.CurrentWordCount += wordCount
	p.UpdatedAt = time.Now()
}

// Complete 项目全部章节完成
func (p *Project) Complete() {
	p.Status = ProjectStatusCompleted
	p.UpdatedAt = time.Now()
}

// Fail 项目生成失败
func (p *Project) Fail(reason string) {
	p.Status = ProjectStatusFailed
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
}

// Progress 计算生成进度百分比
func (p *Project) Progress() float64 {
	if p.ExpectedChapters <= 0 {
		return 0
	}
	pct := float64(p.AcceptedChapters) / float64(p.ExpectedChapters) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
