package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"z-novel-orchestrator/internal/domain/entity"
)

// planItem coordinator 返回的单章大纲
type planItem struct {
	Index     int      `json:"index"`
	Title     string   `json:"title"`
	Outline   string   `json:"outline"`
	KeyPoints []string `json:"key_points"`
}

// ParseChapterPlans 从 LLM 回复中解析章节大纲列表
// 兼容围栏代码块与夹杂说明文字的回复
func ParseChapterPlans(raw string) ([]entity.ChapterPlan, error) {
	jsonStr := extractJSONArray(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in planning response")
	}

	var items []planItem
	if err := json.Unmarshal([]byte(jsonStr), &items); err != nil {
		return nil, fmt.Errorf("failed to parse planning response: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("planning response contains no chapters")
	}

	plans := make([]entity.ChapterPlan, 0, len(items))
	for i, item := range items {
		if item.Index <= 0 {
			item.Index = i + 1
		}
		plans = append(plans, entity.ChapterPlan{
			Index:     item.Index,
			Title:     item.Title,
			Outline:   item.Outline,
			KeyPoints: item.KeyPoints,
		})
	}
	return plans, nil
}

// extractJSONArray 提取回复中的 JSON 数组
func extractJSONArray(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
