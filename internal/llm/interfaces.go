// Package llm provides the LLM collaborator consumed by the recognition
// and enrichment engines: a single Call interface, provider clients
// (Ollama, OpenAI, Anthropic), circuit breaker and rate-limit policy
// wrappers, prompt builders, and response parsing.
//
// The engines only distinguish "call succeeded" from "call failed";
// retries, backoff, and budgets are client policy, never engine logic.
package llm

import "context"

// Completion is one completion returned by a Call.
type Completion struct {
	Content string `json:"content"`
}

// CallOptions carries per-call settings.
type CallOptions struct {
	// JSONSchema, when set, asks the provider for a structured response
	// matching the schema. Providers without native schema support embed
	// it in the prompt instead.
	JSONSchema map[string]interface{}

	// Temperature controls sampling randomness. Disambiguation and
	// consolidation calls use low temperatures for stable verdicts.
	Temperature float64

	// MaxTokens caps the response length; zero means the provider default.
	MaxTokens int
}

// Caller is the LLM collaborator interface. A call may fail or time out;
// callers must treat it as an opaque function returning structured text.
type Caller interface {
	Call(ctx context.Context, prompt string, opts CallOptions) ([]Completion, error)
	Model() string
}
