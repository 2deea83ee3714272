package generation

import (
	"strings"
	"testing"

	"z-novel-orchestrator/internal/domain/entity"
)

// wellFormedChapter 句长均匀、含对话的样例文本
func wellFormedChapter() string {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("林远沿着青石小路慢慢向山门走去。")
		b.WriteString("“师兄，前面的路好像被封住了。”少年低声说道。")
		b.WriteString("远处的钟声在山谷里回荡了很久才散去。")
	}
	return b.String()
}

func TestHeuristicEvaluatorWellFormedContent(t *testing.T) {
	evaluator := NewHeuristicEvaluator(2000)
	verdict := evaluator.Evaluate(wellFormedChapter())

	if verdict.Evaluator != heuristicEvaluatorName {
		t.Errorf("evaluator = %q, want %q", verdict.Evaluator, heuristicEvaluatorName)
	}
	if len(verdict.Scores) != len(entity.AllCriteria()) {
		t.Fatalf("scores = %d criteria, want %d", len(verdict.Scores), len(entity.AllCriteria()))
	}
	for _, criterion := range entity.AllCriteria() {
		score, ok := verdict.Scores[criterion]
		if !ok {
			t.Errorf("missing criterion %s", criterion)
			continue
		}
		if score < 0 || score > 100 {
			t.Errorf("criterion %s = %.1f, want within [0, 100]", criterion, score)
		}
	}
	if verdict.Aggregate <= 0 {
		t.Errorf("aggregate = %.1f, want positive for well-formed content", verdict.Aggregate)
	}
}

func TestHeuristicEvaluatorPenalizesShortContent(t *testing.T) {
	evaluator := NewHeuristicEvaluator(2000)

	short := evaluator.Evaluate("太短了。")
	full := evaluator.Evaluate(wellFormedChapter())

	if short.Scores[entity.CriterionConsistency] >= full.Scores[entity.CriterionConsistency] {
		t.Errorf("short content consistency %.1f should be below full content %.1f",
			short.Scores[entity.CriterionConsistency], full.Scores[entity.CriterionConsistency])
	}
}

func TestHeuristicEvaluatorEmptyContent(t *testing.T) {
	evaluator := NewHeuristicEvaluator(2000)
	verdict := evaluator.Evaluate("")

	if verdict.Scores[entity.CriterionGrammar] != 0 {
		t.Errorf("grammar on empty content = %.1f, want 0", verdict.Scores[entity.CriterionGrammar])
	}
	if verdict.Scores[entity.CriterionCreativity] != 0 {
		t.Errorf("creativity on empty content = %.1f, want 0", verdict.Scores[entity.CriterionCreativity])
	}
}

func TestHeuristicEvaluatorPenalizesCommonPhrases(t *testing.T) {
	evaluator := NewHeuristicEvaluator(100)

	cliched := strings.Repeat("突然，就在这时，只见一道黑影闪过。", 20)
	varied := wellFormedChapter()

	c := evaluator.Evaluate(cliched).Scores[entity.CriterionCreativity]
	v := evaluator.Evaluate(varied).Scores[entity.CriterionCreativity]
	if c >= v {
		t.Errorf("cliched creativity %.1f should be below varied %.1f", c, v)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{-5, 0, 100, 0},
		{150, 0, 100, 100},
		{42, 0, 100, 42},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%.1f, %.1f, %.1f) = %.1f, want %.1f", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
