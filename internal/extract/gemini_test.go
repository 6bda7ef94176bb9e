package extract

import (
	"errors"
	"testing"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"plain array", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no language", "```\n[1,2]\n```", `[1,2]`},
		{"leading prose", "Here you go: {\"a\":1}", `{"a":1}`},
		{"array with inner objects", `[{"a":1},{"b":2}]`, `[{"a":1},{"b":2}]`},
		{"trailing prose", `[1,2] as requested`, `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.input); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassifyAIError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		rateLimited bool
	}{
		{"http 429", errors.New("googleapi: Error 429: too many requests"), true},
		{"resource exhausted", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), true},
		{"quota", errors.New("quota exceeded for model"), true},
		{"transport", errors.New("connection reset by peer"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var extraction *ExtractionError
			got := classifyAIError(tt.err)
			if !errors.As(got, &extraction) {
				t.Fatalf("Expected ExtractionError, got %T", got)
			}
			if extraction.RateLimited != tt.rateLimited {
				t.Errorf("RateLimited = %v, want %v", extraction.RateLimited, tt.rateLimited)
			}
			if !errors.Is(got, tt.err) {
				t.Error("Expected the original error to be wrapped")
			}
		})
	}
}
