package agent

import (
	"testing"

	"z-novel-orchestrator/internal/domain/entity"
)

func TestParseVerdictPlainJSON(t *testing.T) {
	raw := `{"coherence": 85, "grammar": 90, "creativity": 75, "consistency": 80, "feedback": "solid chapter"}`

	v, err := ParseVerdict(raw, "monitor")
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Aggregate != 82.5 {
		t.Errorf("aggregate = %v, want 82.5", v.Aggregate)
	}
	if v.Feedback != "solid chapter" {
		t.Errorf("feedback = %q", v.Feedback)
	}
	if v.Evaluator != "monitor" {
		t.Errorf("evaluator = %q", v.Evaluator)
	}
}

func TestParseVerdictFencedBlock(t *testing.T) {
	raw := "这是我的评估结果：\n```json\n{\"coherence\": 70, \"grammar\": 70, \"creativity\": 70, \"consistency\": 70}\n```\n以上。"

	v, err := ParseVerdict(raw, "monitor")
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Aggregate != 70 {
		t.Errorf("aggregate = %v, want 70", v.Aggregate)
	}
}

func TestParseVerdictUnitScale(t *testing.T) {
	raw := `{"coherence": 0.9, "grammar": 0.8, "creativity": 0.7, "consistency": 0.6}`

	v, err := ParseVerdict(raw, "monitor")
	if err != nil {
		t.Fatalf("ParseVerdict: %v", err)
	}
	if v.Scores[entity.CriterionCoherence] != 90 {
		t.Errorf("coherence = %v, want 90 (scaled)", v.Scores[entity.CriterionCoherence])
	}
	if v.Aggregate != 75 {
		t.Errorf("aggregate = %v, want 75", v.Aggregate)
	}
}

func TestParseVerdictNoJSON(t *testing.T) {
	if _, err := ParseVerdict("the chapter looks fine to me", "monitor"); err == nil {
		t.Error("expected error for response without JSON")
	}
}
