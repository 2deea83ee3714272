package entity

import (
	"testing"
)

func TestQualityVerdictAggregate(t *testing.T) {
	v := NewQualityVerdict(map[string]float64{
		CriterionCoherence:   80,
		CriterionGrammar:     90,
		CriterionCreativity:  70,
		CriterionConsistency: 60,
	}, "", "monitor")

	if v.Aggregate != 75 {
		t.Errorf("aggregate = %v, want 75", v.Aggregate)
	}
}

func TestQualityVerdictAggregateEmpty(t *testing.T) {
	v := NewQualityVerdict(nil, "", "heuristic")
	if v.Aggregate != 0 {
		t.Errorf("aggregate = %v, want 0", v.Aggregate)
	}
}

func TestQualityVerdictTier(t *testing.T) {
	tests := []struct {
		aggregate float64
		want      QualityTier
	}{
		{95, TierExcellent},
		{90, TierExcellent},
		{85, TierGood},
		{80, TierGood},
		{75, TierAcceptable},
		{70, TierAcceptable},
		{60, TierPoor},
		{50, TierPoor},
		{40, TierUnacceptable},
	}

	for _, tt := range tests {
		v := &QualityVerdict{Aggregate: tt.aggregate}
		if got := v.Tier(); got != tt.want {
			t.Errorf("Tier(%v) = %s, want %s", tt.aggregate, got, tt.want)
		}
	}
}

func TestFailingCriteria(t *testing.T) {
	v := NewQualityVerdict(map[string]float64{
		CriterionCoherence:   45,
		CriterionGrammar:     85,
		CriterionCreativity:  65,
		CriterionConsistency: 72,
	}, "", "monitor")

	floors := map[string]float64{CriterionCoherence: 50}
	failing := v.FailingCriteria(floors, 70)

	want := map[string]bool{CriterionCoherence: true, CriterionCreativity: true}
	if len(failing) != len(want) {
		t.Fatalf("failing = %v, want coherence and creativity", failing)
	}
	for _, name := range failing {
		if !want[name] {
			t.Errorf("unexpected failing criterion %s", name)
		}
	}
}
