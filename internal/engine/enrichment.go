package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/scrypster/engram/internal/fieldpath"
	"github.com/scrypster/engram/internal/llm"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/pkg/types"
)

// EnrichmentEngine merges additional sources into an existing stored record,
// producing an auditable changelog. Simple disagreements are settled
// deterministically; complex ones route through the LLM consolidator.
type EnrichmentEngine struct {
	store    storage.RecordStore
	diff     *DiffAnalyzer
	resolver *AutoResolver
	caller   llm.Caller
}

// NewEnrichmentEngine creates an enrichment engine. caller may be nil;
// forced LLM enrichment then fails with ErrLLMUnavailable, and complex
// conflicts are surfaced unresolved in the explanation.
func NewEnrichmentEngine(store storage.RecordStore, caller llm.Caller) *EnrichmentEngine {
	return &EnrichmentEngine{
		store:    store,
		diff:     NewDiffAnalyzer(),
		resolver: NewAutoResolver(),
		caller:   caller,
	}
}

// Enrich merges the sources into the record at key.
//
// Returns storage.ErrNotFound when the key is absent and
// types.ErrLLMUnavailable when the caller forces LLM consolidation without
// an LLM configured. Unless DryRun is set, the merged record is written
// back preserving the original record's tags.
func (e *EnrichmentEngine) Enrich(ctx context.Context, key string, sources []map[string]interface{}, opts types.EnrichmentOptions) (*types.EnrichmentResult, error) {
	if opts.ForceLLMEnrichment && e.caller == nil {
		return nil, fmt.Errorf("%w: llm enrichment forced but no llm caller configured", types.ErrLLMUnavailable)
	}

	record, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("enrich target %q: %w", key, err)
	}
	existing := record.Value

	sources = compactSources(sources)
	if len(sources) == 0 && !opts.ForceLLMEnrichment {
		return &types.EnrichmentResult{EnrichedData: existing}, nil
	}

	report := e.diff.Analyze(existing, sources)

	var enriched map[string]interface{}
	var changes []types.Change
	if opts.ForceLLMEnrichment {
		enriched = fieldpath.DeepClone(existing).(map[string]interface{})
	} else {
		enriched, changes = e.resolver.Resolve(existing, report)
	}

	result := &types.EnrichmentResult{Changes: changes}

	if opts.ForceLLMEnrichment || report.HasComplexConflicts {
		enriched = e.consolidate(ctx, enriched, sources, report, opts, result)
	}
	result.EnrichedData = enriched

	if !opts.DryRun {
		// Nil tags keep the record's existing tag set on update.
		if err := e.store.Set(ctx, key, enriched, storage.SetOptions{}); err != nil {
			return nil, fmt.Errorf("failed to persist enriched record %q: %w", key, err)
		}
		result.Saved = true
	}

	return result, nil
}

// consolidate runs the LLM consolidator over the auto-resolved base. On any
// failure the base data is kept, no LLM change is recorded, and the failure
// is surfaced in the explanation.
func (e *EnrichmentEngine) consolidate(ctx context.Context, base map[string]interface{}, sources []map[string]interface{}, report *types.DiffReport, opts types.EnrichmentOptions, result *types.EnrichmentResult) map[string]interface{} {
	if e.caller == nil {
		result.Explanation = "complex conflicts detected but no llm caller configured, kept auto-resolved data"
		return base
	}

	result.UsedLLM = true
	if err := ctx.Err(); err != nil {
		result.Explanation = fmt.Sprintf("llm consolidation cancelled (%v), kept auto-resolved data", err)
		return base
	}

	prompt := llm.BuildConsolidationPrompt(llm.ConsolidationInput{
		Base:           base,
		Sources:        sources,
		ConflictFields: complexConflictFields(report),
		Goal:           opts.CustomPrompt,
		FocusFields:    opts.FocusFields,
	})

	completions, err := e.caller.Call(ctx, prompt, llm.CallOptions{
		JSONSchema:  opts.Schema,
		Temperature: 0.2,
	})
	if err != nil {
		log.Printf("Warning: llm consolidation failed: %v", err)
		result.Explanation = fmt.Sprintf("llm consolidation failed (%v), kept auto-resolved data", err)
		return base
	}
	if len(completions) == 0 {
		result.Explanation = "llm consolidation returned no completion, kept auto-resolved data"
		return base
	}

	consolidated, err := llm.ParseConsolidation(completions[0].Content)
	if err != nil {
		log.Printf("Warning: llm consolidation unparseable: %v", err)
		result.Explanation = fmt.Sprintf("llm consolidation unparseable (%v), kept auto-resolved data", err)
		return base
	}

	// The LLM merge is atomic: one summarizing change, no field diffing.
	result.Changes = append(result.Changes, types.Change{
		Field:    "*",
		Action:   types.ChangeLLMEnriched,
		OldValue: base,
		NewValue: consolidated,
		Source:   types.SourceLLM,
	})
	result.Explanation = fmt.Sprintf("llm consolidated %d sources", len(sources))
	return consolidated
}

func complexConflictFields(report *types.DiffReport) []string {
	var fields []string
	for _, conflict := range report.Conflicts {
		if !conflict.IsSimple {
			fields = append(fields, conflict.Field)
		}
	}
	for _, addition := range report.Additions {
		if !addition.IsSimple {
			fields = append(fields, addition.Field)
		}
	}
	return fields
}

func compactSources(sources []map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, source := range sources {
		if len(source) > 0 {
			out = append(out, source)
		}
	}
	return out
}
