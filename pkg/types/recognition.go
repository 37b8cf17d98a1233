package types

import "fmt"

// EntityTypeMap maps a field path (dotted, with "[]" marking array
// expansion, e.g. "event.titles[]") to a semantic entity type tag such as
// "location", "person", or "event". It is supplied per recognize/enrich
// call and must not be mutated for the duration of that call.
type EntityTypeMap map[string]string

// RecognitionOptions controls a single Recognize call.
//
// The confidence bands must satisfy
// 0 <= LLMLowerBound <= LLMUpperBound <= Threshold <= 1.
type RecognitionOptions struct {
	// Entities maps field paths of the candidate to entity type tags.
	// Recognition compares exactly these fields.
	Entities EntityTypeMap `json:"entities"`

	// Tags scopes candidate retrieval to records carrying all given tags.
	Tags []string `json:"tags,omitempty"`

	// Threshold is the deterministic-match boundary: confidence at or
	// above it is a match without consulting the LLM.
	Threshold float64 `json:"threshold"`

	// LLMLowerBound is the floor of the uncertain band. Confidence below
	// it is a definite no-match.
	LLMLowerBound float64 `json:"llm_lower_bound"`

	// LLMUpperBound is the ceiling of the LLM band. Confidence in
	// [LLMLowerBound, LLMUpperBound) is escalated to the LLM; confidence
	// in [LLMUpperBound, Threshold) is accepted as a near-threshold match
	// without an LLM call.
	LLMUpperBound float64 `json:"llm_upper_bound"`

	// Limit caps the number of candidates retrieved for comparison.
	// Zero means the retriever's default.
	Limit int `json:"limit,omitempty"`
}

// Validate checks the band ordering invariant. A violation is a
// configuration error and must be rejected before any comparison runs.
func (o *RecognitionOptions) Validate() error {
	if o.Threshold < 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: threshold %f outside [0,1]", ErrConfiguration, o.Threshold)
	}
	if o.LLMLowerBound < 0 {
		return fmt.Errorf("%w: llm_lower_bound %f below 0", ErrConfiguration, o.LLMLowerBound)
	}
	if o.LLMLowerBound > o.LLMUpperBound {
		return fmt.Errorf("%w: llm_lower_bound %f above llm_upper_bound %f", ErrConfiguration, o.LLMLowerBound, o.LLMUpperBound)
	}
	if o.LLMUpperBound > o.Threshold {
		return fmt.Errorf("%w: llm_upper_bound %f above threshold %f", ErrConfiguration, o.LLMUpperBound, o.Threshold)
	}
	if o.Limit < 0 {
		return fmt.Errorf("%w: limit must be >= 0, got %d", ErrConfiguration, o.Limit)
	}
	return nil
}

// RecognitionResult is the verdict of a Recognize call.
//
// UsedLLM is true whenever the LLM band was entered, including when the
// LLM call itself failed; Explanation then records the failure so callers
// can distinguish "deterministic match" from "fallback after LLM failure".
type RecognitionResult struct {
	IsMatch     bool    `json:"is_match"`
	Confidence  float64 `json:"confidence"`
	UsedLLM     bool    `json:"used_llm"`
	MatchingKey string  `json:"matching_key,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}
