package agent

import (
	"context"
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		fatal     bool
	}{
		{"timeout", errors.New("request timed out after 120s"), true, false},
		{"rate limit", errors.New("429 Too Many Requests"), true, false},
		{"server overload", errors.New("503 Service Unavailable"), true, false},
		{"connection", errors.New("dial tcp: connection refused"), true, false},
		{"bad key", errors.New("invalid API key provided"), false, true},
		{"unauthorized", errors.New("401 Unauthorized"), false, true},
		{"context length", errors.New("maximum context length exceeded"), false, true},
		{"unknown", errors.New("something odd happened"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := Classify(tt.err)
			if got := IsTransient(classified); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}
			if got := IsFatal(classified); got != tt.fatal {
				t.Errorf("IsFatal = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestClassifyDeadline(t *testing.T) {
	if !IsTransient(Classify(context.DeadlineExceeded)) {
		t.Error("deadline exceeded should be transient")
	}
	if IsTransient(Classify(context.Canceled)) {
		t.Error("cancellation should not be wrapped as transient")
	}
}

func TestClassifyIdempotent(t *testing.T) {
	orig := &FatalError{Err: errors.New("boom")}
	if got := Classify(orig); got != orig {
		t.Error("already-classified errors should pass through")
	}
}
