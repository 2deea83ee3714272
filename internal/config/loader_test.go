package config

import (
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_EXPAND_SET", "from-env")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "set variable wins over default",
			input: "value: ${TEST_EXPAND_SET:fallback}",
			want:  "value: from-env",
		},
		{
			name:  "unset variable uses default",
			input: "value: ${TEST_EXPAND_UNSET:fallback}",
			want:  "value: fallback",
		},
		{
			name:  "unset variable with empty default",
			input: "value: ${TEST_EXPAND_UNSET:}",
			want:  "value: ",
		},
		{
			name:  "unset variable without default stays as-is",
			input: "value: ${TEST_EXPAND_UNSET}",
			want:  "value: ${TEST_EXPAND_UNSET}",
		},
		{
			name:  "default containing URL",
			input: "url: ${TEST_EXPAND_UNSET:https://api.example.com/v1}",
			want:  "url: https://api.example.com/v1",
		},
		{
			name:  "multiple placeholders",
			input: "${TEST_EXPAND_SET:x}/${TEST_EXPAND_UNSET:y}",
			want:  "from-env/y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnv(tt.input); got != tt.want {
				t.Errorf("expandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
