package types

// ChangeAction categorizes a single change in the enrichment audit trail.
type ChangeAction string

const (
	// ChangeAdded records a field written that was absent from the
	// existing record.
	ChangeAdded ChangeAction = "added"

	// ChangeUpdated records a field whose value was replaced.
	ChangeUpdated ChangeAction = "updated"

	// ChangeResolvedConflict records a field conflict settled by a
	// deterministic heuristic.
	ChangeResolvedConflict ChangeAction = "resolved_conflict"

	// ChangeCombined records values merged together (e.g. array union).
	ChangeCombined ChangeAction = "combined"

	// ChangeLLMEnriched records an atomic LLM-produced merge of the
	// whole record.
	ChangeLLMEnriched ChangeAction = "llm_enriched"
)

// ChangeSource identifies who produced a change.
type ChangeSource string

const (
	// SourceAutomatic marks changes made by deterministic heuristics.
	SourceAutomatic ChangeSource = "automatic"

	// SourceLLM marks changes produced by the LLM consolidator.
	SourceLLM ChangeSource = "llm"
)

// Change is one immutable entry in the enrichment audit trail. The ordered
// list of Changes on an EnrichmentResult is the changelog for that merge.
type Change struct {
	Field    string       `json:"field"`
	Action   ChangeAction `json:"action"`
	OldValue interface{}  `json:"old_value,omitempty"`
	NewValue interface{}  `json:"new_value"`
	Source   ChangeSource `json:"source"`
}

// FieldAddition records a field path present in at least one additional
// source but absent from the existing record.
type FieldAddition struct {
	// Field is the dotted path of the missing field.
	Field string `json:"field"`

	// Values holds the distinct candidate values across all sources.
	Values []interface{} `json:"values"`

	// IsSimple is true when the addition has exactly one distinct value
	// and can be applied without the LLM.
	IsSimple bool `json:"is_simple"`
}

// FieldConflict records a field whose value differs between the existing
// record and one or more additional sources.
type FieldConflict struct {
	// Field is the dotted path of the conflicting field.
	Field string `json:"field"`

	// ExistingValue is the value currently stored.
	ExistingValue interface{} `json:"existing_value"`

	// AdditionalValues are the values proposed by each source, in source
	// order (duplicates preserved).
	AdditionalValues []interface{} `json:"additional_values"`

	// UniqueValues are the distinct values across existing + additional.
	UniqueValues []interface{} `json:"unique_values"`

	// IsSimple is true when a cheap heuristic can settle the conflict:
	// at most one non-empty value, longest-string dominance, or strict
	// array containment.
	IsSimple bool `json:"is_simple"`
}

// DiffReport is the output of the diff analyzer for one existing record
// against N additional sources.
type DiffReport struct {
	Additions           []FieldAddition `json:"additions"`
	Conflicts           []FieldConflict `json:"conflicts"`
	HasComplexConflicts bool            `json:"has_complex_conflicts"`
}

// EnrichmentOptions controls a single Enrich call.
type EnrichmentOptions struct {
	// CustomPrompt replaces the goal/context section of the consolidation
	// prompt when set.
	CustomPrompt string `json:"custom_prompt,omitempty"`

	// FocusFields biases the LLM consolidator's attention to the named
	// field paths.
	FocusFields []string `json:"focus_fields,omitempty"`

	// Schema is an optional JSON schema the consolidated object must
	// match (passed through to the LLM caller).
	Schema map[string]interface{} `json:"schema,omitempty"`

	// ForceLLMEnrichment routes through the LLM consolidator even when
	// no complex conflicts were detected, skipping auto-resolution.
	ForceLLMEnrichment bool `json:"force_llm_enrichment,omitempty"`

	// DryRun computes the merge without persisting it.
	DryRun bool `json:"dry_run,omitempty"`
}

// EnrichmentResult is the outcome of an Enrich call.
type EnrichmentResult struct {
	// EnrichedData is the merged record value.
	EnrichedData interface{} `json:"enriched_data"`

	// Changes is the ordered audit trail for this merge.
	Changes []Change `json:"changes"`

	// UsedLLM is true when the consolidator was invoked, including when
	// the call failed and the pre-LLM data was kept.
	UsedLLM bool `json:"used_llm"`

	// Explanation carries the LLM's own merge rationale, or a failure
	// note when the LLM path was attempted and fell back.
	Explanation string `json:"explanation,omitempty"`

	// Saved reports whether the merged record was written back to
	// storage (always false under DryRun).
	Saved bool `json:"saved"`
}
