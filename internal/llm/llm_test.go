package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"is_match": true}`,
			want:  `{"is_match": true}`,
		},
		{
			name:  "wrapped in prose",
			input: "Sure, here is the answer:\n{\"is_match\": false}\nLet me know.",
			want:  `{"is_match": false}`,
		},
		{
			name:  "markdown fence",
			input: "```json\n{\"confidence\": 0.8}\n```",
			want:  `{"confidence": 0.8}`,
		},
		{
			name:  "nested objects",
			input: `{"outer": {"inner": {"deep": 1}}}`,
			want:  `{"outer": {"inner": {"deep": 1}}}`,
		},
		{
			name:  "braces inside strings",
			input: `{"reasoning": "the value {x} is escaped \" here"}`,
			want:  `{"reasoning": "the value {x} is escaped \" here"}`,
		},
		{
			name:    "no object",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unbalanced",
			input:   `{"broken": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMatchVerdict(t *testing.T) {
	verdict, err := ParseMatchVerdict(`{"is_match": true, "confidence": 0.85, "reasoning": "same venue, different spelling"}`)
	require.NoError(t, err)
	assert.True(t, verdict.IsMatch)
	assert.InDelta(t, 0.85, verdict.Confidence, 1e-9)
	assert.Equal(t, "same venue, different spelling", verdict.Reasoning)
}

func TestParseMatchVerdictRejectsOutOfRangeConfidence(t *testing.T) {
	_, err := ParseMatchVerdict(`{"is_match": true, "confidence": 1.5, "reasoning": "x"}`)
	assert.Error(t, err)

	_, err = ParseMatchVerdict(`{"is_match": false, "confidence": -0.1, "reasoning": "x"}`)
	assert.Error(t, err)
}

func TestParseMatchVerdictMalformed(t *testing.T) {
	_, err := ParseMatchVerdict("not json at all")
	assert.Error(t, err)
}

func TestParseConsolidation(t *testing.T) {
	record, err := ParseConsolidation("Here you go:\n{\"name\": \"Riga Arena\", \"capacity\": 10300}")
	require.NoError(t, err)
	assert.Equal(t, "Riga Arena", record["name"])
}

func TestParseConsolidationEmpty(t *testing.T) {
	_, err := ParseConsolidation(`{}`)
	assert.Error(t, err)
}

func TestBuildMatchPrompt(t *testing.T) {
	prompt := BuildMatchPrompt(
		map[string]interface{}{"name": "Splendid Palace"},
		map[string]interface{}{"name": "Kino Splendid Palace"},
		0.67,
	)
	assert.Contains(t, prompt, "Splendid Palace")
	assert.Contains(t, prompt, "0.67")
	assert.Contains(t, prompt, "is_match")
}

func TestBuildConsolidationPrompt(t *testing.T) {
	prompt := BuildConsolidationPrompt(ConsolidationInput{
		Base:           map[string]interface{}{"name": "Positivus"},
		Sources:        []map[string]interface{}{{"name": "Positivus Festival"}},
		ConflictFields: []string{"description"},
		FocusFields:    []string{"description", "tags"},
	})
	assert.Contains(t, prompt, "Positivus Festival")
	assert.Contains(t, prompt, "description")
	assert.Contains(t, prompt, "Only change these fields")
}

func TestBuildConsolidationPromptCustomGoal(t *testing.T) {
	prompt := BuildConsolidationPrompt(ConsolidationInput{
		Base: map[string]interface{}{"name": "x"},
		Goal: "keep the shortest description",
	})
	assert.Contains(t, prompt, "keep the shortest description")
	assert.NotContains(t, prompt, "preferring the most complete")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	breaker := NewBreakerWithConfig(BreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	failing := func() (interface{}, error) { return nil, fmt.Errorf("boom") }

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(context.Background(), failing)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}

	_, err := breaker.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestRateLimitedCallerRespectsCancellation(t *testing.T) {
	inner := &stubCaller{content: `{}`}
	limited := NewRateLimitedCaller(inner, RatePolicy{RequestsPerSecond: 0.001, Burst: 1, MaxConcurrent: 1})

	// first call consumes the only burst token
	_, err := limited.Call(context.Background(), "p", CallOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Call(ctx, "p", CallOptions{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRateLimitedCallerDelegates(t *testing.T) {
	inner := &stubCaller{content: `{"ok": true}`}
	limited := NewRateLimitedCaller(inner, RatePolicy{RequestsPerSecond: 100, Burst: 10, MaxConcurrent: 2})

	completions, err := limited.Call(context.Background(), "hello", CallOptions{})
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.Equal(t, `{"ok": true}`, completions[0].Content)
	assert.Equal(t, inner.Model(), limited.Model())
}

func TestOllamaClientCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Write([]byte(`{"response": "{\"is_match\": true}", "done": true}`))
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL, Model: "test-model"})
	completions, err := client.Call(context.Background(), "prompt", CallOptions{})
	require.NoError(t, err)
	require.Len(t, completions, 1)
	assert.True(t, strings.Contains(completions[0].Content, "is_match"))
}

func TestOllamaHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.Write([]byte(`{"version": "0.5.0"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{BaseURL: server.URL})
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestNewCaller(t *testing.T) {
	caller, err := NewCaller(ProviderConfig{Provider: "ollama", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "llama3", caller.Model())

	caller, err = NewCaller(ProviderConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", caller.Model())

	caller, err = NewCaller(ProviderConfig{Provider: "anthropic"})
	require.NoError(t, err)
	assert.NotEmpty(t, caller.Model())

	_, err = NewCaller(ProviderConfig{Provider: "cohere"})
	assert.Error(t, err)
}

type stubCaller struct {
	content string
	calls   atomic.Int32
}

func (s *stubCaller) Call(ctx context.Context, prompt string, opts CallOptions) ([]Completion, error) {
	s.calls.Add(1)
	return []Completion{{Content: s.content}}, nil
}

func (s *stubCaller) Model() string { return "stub" }
