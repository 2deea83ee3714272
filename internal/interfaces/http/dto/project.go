package dto

import (
	"time"

	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
)

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Premise string `json:"premise" binding:"max=4000"`
	Genre   string `json:"genre"`
	Length  string `json:"length"`

	Settings *ProjectSettingsRequest `json:"settings"`
}

// ProjectSettingsRequest 项目设置请求
type ProjectSettingsRequest struct {
	ChapterWords  int     `json:"chapter_words"`
	WritingStyle  string  `json:"writing_style"`
	POV           string  `json:"pov"`
	Temperature   float64 `json:"temperature"`
	SummaryWindow int     `json:"summary_window"`
}

// UpdateProjectRequest 更新项目请求
type UpdateProjectRequest struct {
	Title    *string                 `json:"title"`
	Premise  *string                 `json:"premise"`
	Genre    *string                 `json:"genre"`
	Settings *ProjectSettingsRequest `json:"settings"`
}

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"title"`
	Premise          string                  `json:"premise,omitempty"`
	Genre            string                  `json:"genre,omitempty"`
	Length           string                  `json:"length"`
	ExpectedChapters int                     `json:"expected_chapters"`
	AcceptedChapters int                     `json:"accepted_chapters"`
	CurrentWordCount int                     `json:"current_word_count"`
	Progress         float64                 `json:"progress"`
	Status           string                  `json:"status"`
	FailureReason    string                  `json:"failure_reason,omitempty"`
	ChapterPlans     []entity.ChapterPlan    `json:"chapter_plans,omitempty"`
	Settings         *entity.ProjectSettings `json:"settings,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

// ProjectStatsResponse 项目统计响应
type ProjectStatsResponse struct {
	Project *ProjectResponse         `json:"project"`
	Stats   *repository.ProjectStats `json:"stats"`
}

// ToProjectResponse 实体转响应
func ToProjectResponse(p *entity.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:               p.ID,
		Title:            p.Title,
		Premise:          p.Premise,
		Genre:            string(p.Genre),
		Length:           string(p.Length),
		ExpectedChapters: p.ExpectedChapters,
		AcceptedChapters: p.AcceptedChapters,
		CurrentWordCount: p.CurrentWordCount,
		Progress:         p.Progress(),
		Status:           string(p.Status),
		FailureReason:    p.FailureReason,
		ChapterPlans:     p.ChapterPlans,
		Settings:         p.Settings,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ToProjectResponses 实体列表转响应列表
func ToProjectResponses(items []*entity.Project) []*ProjectResponse {
	out := make([]*ProjectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, ToProjectResponse(p))
	}
	return out
}

// ApplySettings 将设置请求写入实体设置
func (r *ProjectSettingsRequest) ApplySettings(s *entity.ProjectSettings) {
	if r.ChapterWords > 0 {
		s.ChapterWords = r.ChapterWords
	}
	if r.WritingStyle != "" {
		s.WritingStyle = r.WritingStyle
	}
	if r.POV != "" {
		s.POV = r.POV
	}
	if r.Temperature > 0 {
		s.Temperature = r.Temperature
	}
	if r.SummaryWindow > 0 {
		s.SummaryWindow = r.SummaryWindow
	}
}
