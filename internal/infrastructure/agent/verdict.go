// Package agent 提供多智能体 LLM 客户端
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"z-novel-orchestrator/internal/domain/entity"
)

// verdictPayload monitor 角色返回的评分结构
type verdictPayload struct {
	Coherence   float64 `json:"coherence"`
	Grammar     float64 `json:"grammar"`
	Creativity  float64 `json:"creativity"`
	Consistency float64 `json:"consistency"`
	Feedback    string  `json:"feedback"`
}

// ParseVerdict 从 LLM 回复中解析质量评估
// 兼容围栏代码块与夹杂说明文字的回复
func ParseVerdict(raw, evaluator string) (*entity.QualityVerdict, error) {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object found in evaluation response")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse evaluation response: %w", err)
	}

	scores := map[string]float64{
		entity.CriterionCoherence:   clampScore(payload.Coherence),
		entity.CriterionGrammar:     clampScore(payload.Grammar),
		entity.CriterionCreativity:  clampScore(payload.Creativity),
		entity.CriterionConsistency: clampScore(payload.Consistency),
	}

	return entity.NewQualityVerdict(scores, payload.Feedback, evaluator), nil
}

// extractJSON 提取回复中的 JSON 对象
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// 优先处理 Markdown 围栏
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

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// clampScore 分数裁剪到 0-100，兼容按 0-1 返回的模型
func clampScore(score float64) float64 {
	if score > 0 && score <= 1 {
		score *= 100
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
