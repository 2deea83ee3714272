package generation

import (
	"strings"

	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/pkg/metrics"
)

// Decision 质量闸门裁决结果
type Decision string

const (
	// DecisionAccept 章节通过验收
	DecisionAccept Decision = "accept"
	// DecisionRegenerate 质量不达标，安排重写
	DecisionRegenerate Decision = "regenerate"
	// DecisionEscalate 重写次数耗尽，章节失败
	DecisionEscalate Decision = "escalate"
)

// defaultMaxAttempts 默认每章最大生成尝试次数
const defaultMaxAttempts = 3

// hardCriterionFloor 维度硬下限
// 即使某维度未配置下限，归零的维度也不允许放行，综合分不能掩盖单项崩塌
const hardCriterionFloor = 1

// Gate 质量闸门
// 综合分达标且各维度不低于下限才放行；不达标时在尝试预算内安排重写
type Gate struct {
	minAggregate float64
	floors       map[string]float64
	maxAttempts  int
}

// NewGate 根据配置创建质量闸门
func NewGate(cfg config.QualityConfig) *Gate {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Gate{
		minAggregate: cfg.MinAggregate,
		floors:       cfg.Floors,
		maxAttempts:  maxAttempts,
	}
}

// MaxAttempts 每章最大尝试次数
func (g *Gate) MaxAttempts() int {
	return g.maxAttempts
}

// Decide 对一次评估结果做出裁决
// attempt 为当前已完成的尝试次数（从 1 开始）
// 返回裁决与未达标维度列表
func (g *Gate) Decide(verdict *entity.QualityVerdict, attempt int) (Decision, []string) {
	metrics.QualityAggregateScore.Observe(verdict.Aggregate)

	failing := verdict.FailingCriteria(g.floors, hardCriterionFloor)
	passed := verdict.Aggregate >= g.minAggregate && len(failing) == 0

	var decision Decision
	switch {
	case passed:
		decision = DecisionAccept
	case attempt >= g.maxAttempts:
		decision = DecisionEscalate
	default:
		decision = DecisionRegenerate
	}

	metrics.GateDecisionTotal.WithLabelValues(string(decision)).Inc()
	return decision, failing
}

// RejectionReason 生成裁决说明文本
func (g *Gate) RejectionReason(verdict *entity.QualityVerdict, failing []string) string {
	var parts []string
	if verdict.Aggregate < g.minAggregate {
		parts = append(parts, "aggregate score below threshold")
	}
	if len(failing) > 0 {
		parts = append(parts, "criteria below floor: "+strings.Join(failing, ", "))
	}
	if len(parts) == 0 {
		return "quality gate rejected"
	}
	return strings.Join(parts, "; ")
}
