package generation

import (
	"testing"

	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
)

func TestGateDecide(t *testing.T) {
	gate := NewGate(config.QualityConfig{
		MinAggregate: 70,
		Floors: map[string]float64{
			entity.CriterionCoherence:   50,
			entity.CriterionConsistency: 50,
		},
		MaxAttempts: 3,
	})

	tests := []struct {
		name        string
		scores      map[string]float64
		attempt     int
		want        Decision
		wantFailing int
	}{
		{
			name: "high scores pass",
			scores: map[string]float64{
				entity.CriterionCoherence:   85,
				entity.CriterionGrammar:     90,
				entity.CriterionCreativity:  80,
				entity.CriterionConsistency: 85,
			},
			attempt: 1,
			want:    DecisionAccept,
		},
		{
			name: "low aggregate triggers regeneration",
			scores: map[string]float64{
				entity.CriterionCoherence:   60,
				entity.CriterionGrammar:     65,
				entity.CriterionCreativity:  60,
				entity.CriterionConsistency: 60,
			},
			attempt: 1,
			want:    DecisionRegenerate,
		},
		{
			name: "floor violation blocks despite good aggregate",
			scores: map[string]float64{
				entity.CriterionCoherence:   40,
				entity.CriterionGrammar:     95,
				entity.CriterionCreativity:  95,
				entity.CriterionConsistency: 90,
			},
			attempt:     1,
			want:        DecisionRegenerate,
			wantFailing: 1,
		},
		{
			name: "zeroed criterion without floor blocks despite good aggregate",
			scores: map[string]float64{
				entity.CriterionCoherence:   95,
				entity.CriterionGrammar:     0,
				entity.CriterionCreativity:  95,
				entity.CriterionConsistency: 95,
			},
			attempt:     1,
			want:        DecisionRegenerate,
			wantFailing: 1,
		},
		{
			name: "attempts exhausted escalates",
			scores: map[string]float64{
				entity.CriterionCoherence:   60,
				entity.CriterionGrammar:     60,
				entity.CriterionCreativity:  60,
				entity.CriterionConsistency: 60,
			},
			attempt: 3,
			want:    DecisionEscalate,
		},
		{
			name: "pass on final attempt still accepts",
			scores: map[string]float64{
				entity.CriterionCoherence:   85,
				entity.CriterionGrammar:     85,
				entity.CriterionCreativity:  85,
				entity.CriterionConsistency: 85,
			},
			attempt: 3,
			want:    DecisionAccept,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := entity.NewQualityVerdict(tt.scores, "", "test")
			decision, failing := gate.Decide(verdict, tt.attempt)
			if decision != tt.want {
				t.Errorf("Decide() = %s, want %s (aggregate %.1f)", decision, tt.want, verdict.Aggregate)
			}
			if len(failing) != tt.wantFailing {
				t.Errorf("failing criteria = %v, want %d entries", failing, tt.wantFailing)
			}
		})
	}
}

func TestGateDefaults(t *testing.T) {
	gate := NewGate(config.QualityConfig{})
	if gate.MaxAttempts() != defaultMaxAttempts {
		t.Errorf("MaxAttempts() = %d, want %d", gate.MaxAttempts(), defaultMaxAttempts)
	}
}

func TestGateRejectionReason(t *testing.T) {
	gate := NewGate(config.QualityConfig{MinAggregate: 70, MaxAttempts: 3})
	verdict := entity.NewQualityVerdict(map[string]float64{
		entity.CriterionCoherence: 40,
	}, "", "test")

	reason := gate.RejectionReason(verdict, []string{entity.CriterionCoherence})
	if reason == "" || reason == "quality gate rejected" {
		t.Errorf("RejectionReason() = %q, want specific reason", reason)
	}
}
