package types

import "errors"

// Error taxonomy for the recognition/enrichment engine. Configuration
// problems fail fast at setup time; per-item LLM failures are recovered
// locally and surfaced through result explanations instead of errors.
var (
	// ErrNotFound is returned when an enrich target key has no existing
	// record. No partial write occurs.
	ErrNotFound = errors.New("record not found")

	// ErrConfiguration is returned for malformed threshold ordering and
	// unknown stage/component/processor names. It is always raised at
	// setup or validation time, never mid-pipeline.
	ErrConfiguration = errors.New("configuration error")

	// ErrLLMUnavailable is returned when LLM consolidation is required
	// (forced) but no LLM caller is configured.
	ErrLLMUnavailable = errors.New("llm caller unavailable")
)
