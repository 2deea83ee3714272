package entity

import (
	"testing"
)

func TestChapterStateTransitions(t *testing.T) {
	tests := []struct {
		from ChapterState
		to   ChapterState
		ok   bool
	}{
		{ChapterStatePending, ChapterStateGenerating, true},
		{ChapterStatePending, ChapterStateAccepted, false},
		{ChapterStateGenerating, ChapterStateEvaluating, true},
		{ChapterStateGenerating, ChapterStateFailed, true},
		{ChapterStateGenerating, ChapterStateAccepted, false},
		{ChapterStateEvaluating, ChapterStateAccepted, true},
		{ChapterStateEvaluating, ChapterStateRegenerating, true},
		{ChapterStateEvaluating, ChapterStateFailed, true},
		{ChapterStateRegenerating, ChapterStateGenerating, true},
		{ChapterStateRegenerating, ChapterStateAccepted, false},
		{ChapterStateAccepted, ChapterStateGenerating, false},
		{ChapterStateFailed, ChapterStateGenerating, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestChapterResultLifecycle(t *testing.T) {
	c := NewChapterResult("proj-1", "job-1", 1, ChapterPlan{Index: 1, Title: "第一章"})

	if c.State != ChapterStatePending {
		t.Fatalf("new chapter state = %s, want pending", c.State)
	}

	if err := c.BeginGeneration(); err != nil {
		t.Fatalf("BeginGeneration: %v", err)
	}
	if c.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", c.Attempts)
	}

	if err := c.BeginEvaluation("草稿内容"); err != nil {
		t.Fatalf("BeginEvaluation: %v", err)
	}
	if c.WordCount != 4 {
		t.Errorf("word count = %d, want 4 (rune count)", c.WordCount)
	}

	verdict := NewQualityVerdict(map[string]float64{
		CriterionCoherence: 60, CriterionGrammar: 65,
	}, "needs work", "monitor")
	if err := c.RequestRegeneration(verdict); err != nil {
		t.Fatalf("RequestRegeneration: %v", err)
	}

	if err := c.BeginGeneration(); err != nil {
		t.Fatalf("second BeginGeneration: %v", err)
	}
	if c.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", c.Attempts)
	}

	if err := c.BeginEvaluation("更好的内容"); err != nil {
		t.Fatalf("second BeginEvaluation: %v", err)
	}
	good := NewQualityVerdict(map[string]float64{
		CriterionCoherence: 85, CriterionGrammar: 90,
	}, "", "monitor")
	if err := c.Accept(good); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if !c.State.Terminal() {
		t.Error("accepted state should be terminal")
	}
	if err := c.BeginGeneration(); err == nil {
		t.Error("BeginGeneration after accept should fail")
	}
}

func TestChapterResultFailFromGenerating(t *testing.T) {
	c := NewChapterResult("proj-1", "job-1", 3, ChapterPlan{Index: 3})
	if err := c.BeginGeneration(); err != nil {
		t.Fatalf("BeginGeneration: %v", err)
	}
	if err := c.Fail("provider unreachable"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if c.FailReason != "provider unreachable" {
		t.Errorf("fail reason = %q", c.FailReason)
	}
}
