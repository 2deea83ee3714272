package generation

import (
	"regexp"
	"strings"

	"z-novel-orchestrator/internal/domain/entity"
)

// heuristicEvaluatorName 启发式评估器在裁决记录中的标识
const heuristicEvaluatorName = "heuristic"

var (
	sentenceSplitter = regexp.MustCompile(`[。！？!?]`)
	dialoguePattern  = regexp.MustCompile(`[“"][^”"]+[”"]`)
)

// commonPhrases 套话短语，出现过多会拉低创意分
var commonPhrases = []string{
	"突然", "就在这时", "就在此时", "只见", "只听", "却说", "且说",
}

// HeuristicEvaluator 启发式质量评估器
// 监察 Agent 未配置时的降级方案，基于文本统计特征给出近似评分
type HeuristicEvaluator struct {
	targetWords int
}

// NewHeuristicEvaluator 创建启发式评估器，targetWords 为目标章节字数
func NewHeuristicEvaluator(targetWords int) *HeuristicEvaluator {
	if targetWords <= 0 {
		targetWords = 2000
	}
	return &HeuristicEvaluator{targetWords: targetWords}
}

// Evaluate 对章节内容打分
func (h *HeuristicEvaluator) Evaluate(content string) *entity.QualityVerdict {
	scores := map[string]float64{
		entity.CriterionCoherence:   h.scoreCoherence(content),
		entity.CriterionGrammar:     h.scoreGrammar(content),
		entity.CriterionCreativity:  h.scoreCreativity(content),
		entity.CriterionConsistency: h.scoreConsistency(content),
	}
	return entity.NewQualityVerdict(scores, "heuristic evaluation based on text statistics", heuristicEvaluatorName)
}

// scoreCoherence 通过句长分布评估连贯性，句长方差越大得分越低
func (h *HeuristicEvaluator) scoreCoherence(content string) float64 {
	sentences := splitSentences(content)
	if len(sentences) < 2 {
		return 80
	}

	var total float64
	lengths := make([]float64, len(sentences))
	for i, s := range sentences {
		lengths[i] = float64(len([]rune(s)))
		total += lengths[i]
	}
	mean := total / float64(len(lengths))

	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))

	score := 100 - variance/10
	return clamp(score, 0, 100)
}

// scoreGrammar 通过平均句长评估语言质量，过长或过短的句子都可读性差
func (h *HeuristicEvaluator) scoreGrammar(content string) float64 {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return 0
	}

	var total int
	for _, s := range sentences {
		total += len([]rune(s))
	}
	avg := float64(total) / float64(len(sentences))

	switch {
	case avg >= 15 && avg <= 25:
		return 90
	case avg >= 10 && avg <= 35:
		return 75
	default:
		return 60
	}
}

// scoreCreativity 通过对话占比、套话密度与句首多样性评估创意
func (h *HeuristicEvaluator) scoreCreativity(content string) float64 {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return 0
	}

	dialogueCount := len(dialoguePattern.FindAllString(content, -1))
	dialogueRatio := float64(dialogueCount) / float64(len(sentences))

	var commonCount int
	for _, phrase := range commonPhrases {
		commonCount += strings.Count(content, phrase)
	}

	starts := make(map[string]struct{}, len(sentences))
	for _, s := range sentences {
		runes := []rune(strings.TrimSpace(s))
		if len(runes) >= 2 {
			starts[string(runes[:2])] = struct{}{}
		}
	}
	startDiversity := float64(len(starts)) / float64(len(sentences))

	score := clamp(dialogueRatio*5, 0, 1)*30 +
		clamp(1-float64(commonCount)/10, 0, 1)*30 +
		startDiversity*40
	return clamp(score, 0, 100)
}

// scoreConsistency 通过篇幅达标程度与词汇丰富度评估一致性
func (h *HeuristicEvaluator) scoreConsistency(content string) float64 {
	runes := len([]rune(content))
	score := 80.0

	// 篇幅严重不足视为未完成的章节
	ratio := float64(runes) / float64(h.targetWords)
	switch {
	case ratio < 0.3:
		score -= 40
	case ratio < 0.6:
		score -= 20
	case ratio > 2.5:
		score -= 10
	}

	if runes > 0 {
		unique := make(map[rune]struct{}, runes)
		for _, r := range content {
			unique[r] = struct{}{}
		}
		richness := float64(len(unique)) / float64(runes)
		if richness < 0.1 {
			score -= 20
		}
	}

	return clamp(score, 0, 100)
}

func splitSentences(content string) []string {
	parts := sentenceSplitter.Split(content, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
