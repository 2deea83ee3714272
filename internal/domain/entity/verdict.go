// Package entity 定义领域实体
package entity

import (
	"time"
)

// 质量评分标准名称
const (
	CriterionCoherence   = "coherence"
	CriterionGrammar     = "grammar"
	CriterionCreativity  = "creativity"
	CriterionConsistency = "consistency"
)

// AllCriteria 返回全部评分标准
func AllCriteria() []string {
	return []string{
		CriterionCoherence,
		CriterionGrammar,
		CriterionCreativity,
		CriterionConsistency,
	}
}

// QualityTier 质量档位
type QualityTier string

const (
	TierExcellent    QualityTier = "excellent"
	TierGood         QualityTier = "good"
	TierAcceptable   QualityTier = "acceptable"
	TierPoor         QualityTier = "poor"
	TierUnacceptable QualityTier = "unacceptable"
)

// QualityVerdict 章节质量评估结果
// 各项分数取值 0-100，Aggregate 为各项的算术平均
type QualityVerdict struct {
	Scores      map[string]float64 `json:"scores"`
	Aggregate   float64            `json:"aggregate"`
	Feedback    string             `json:"feedback,omitempty"`
	Evaluator   string             `json:"evaluator,omitempty"` // monitor 角色的提供商，或 "heuristic"
	EvaluatedAt time.Time          `json:"evaluated_at"`
}

// NewQualityVerdict 根据分项分数构造评估结果
func NewQualityVerdict(scores map[string]float64, feedback, evaluator string) *QualityVerdict {
	v := &QualityVerdict{
		Scores:      scores,
		Feedback:    feedback,
		Evaluator:   evaluator,
		EvaluatedAt: time.Now(),
	}
	v.Aggregate = aggregate(scores)
	return v
}

// aggregate 各分项的算术平均，空映射返回 0
func aggregate(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Tier 根据综合分返回质量档位
func (v *QualityVerdict) Tier() QualityTier {
	switch {
	case v.Aggregate >= 90:
		return TierExcellent
	case v.Aggregate >= 80:
		return TierGood
	case v.Aggregate >= 70:
		return TierAcceptable
	case v.Aggregate >= 50:
		return TierPoor
	default:
		return TierUnacceptable
	}
}

// FailingCriteria 返回低于给定阈值的分项名称
func (v *QualityVerdict) FailingCriteria(floors map[string]float64, minScore float64) []string {
	var failing []string
	for _, name := range AllCriteria() {
		score, ok := v.Scores[name]
		if !ok {
			continue
		}
		floor, hasFloor := floors[name]
		if hasFloor && score < floor {
			failing = append(failing, name)
			continue
		}
		if score < minScore {
			failing = append(failing, name)
		}
	}
	return failing
}
