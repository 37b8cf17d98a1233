package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/scrypster/engram/internal/fieldpath"
	"github.com/scrypster/engram/internal/llm"
	"github.com/scrypster/engram/internal/storage"
	"github.com/scrypster/engram/internal/textmatch"
	"github.com/scrypster/engram/pkg/types"
)

// RecognitionEngine decides whether a candidate record denotes the same
// entity as a stored record. The decision is banded by confidence: a
// deterministic no-match below the lower bound, an LLM disambiguation in
// the uncertain band, and a deterministic match at or above the threshold.
type RecognitionEngine struct {
	retriever *Retriever
	scorer    *textmatch.Scorer
	caller    llm.Caller
}

// NewRecognitionEngine creates a recognition engine. caller may be nil, in
// which case the uncertain band resolves deterministically to no-match.
func NewRecognitionEngine(retriever *Retriever, scorer *textmatch.Scorer, caller llm.Caller) *RecognitionEngine {
	if scorer == nil {
		scorer = textmatch.NewScorer()
	}
	return &RecognitionEngine{retriever: retriever, scorer: scorer, caller: caller}
}

// Recognize scores the candidate against every retrieved record and applies
// the band policy to the best-scoring one.
func (e *RecognitionEngine) Recognize(ctx context.Context, candidate map[string]interface{}, opts types.RecognitionOptions) (*types.RecognitionResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if len(opts.Entities) == 0 {
		return &types.RecognitionResult{
			Explanation: "no entity fields configured, confidence is undefined",
		}, nil
	}

	records, err := e.retriever.Retrieve(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &types.RecognitionResult{
			Explanation: "no candidate records in scope",
		}, nil
	}

	var best *storage.Record
	bestConfidence := -1.0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		confidence := e.confidence(candidate, record.Value, opts.Entities)
		if confidence > bestConfidence {
			bestConfidence = confidence
			best = record
		}
	}

	return e.decide(ctx, candidate, best, bestConfidence, opts)
}

// confidence is the unweighted mean of per-field similarity scores across
// the entity field map.
func (e *RecognitionEngine) confidence(candidate, existing map[string]interface{}, entities types.EntityTypeMap) float64 {
	paths := make([]string, 0, len(entities))
	for path := range entities {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	total := 0.0
	for _, path := range paths {
		total += e.fieldScore(candidate, existing, path)
	}
	return total / float64(len(paths))
}

// fieldScore compares all values at a path pairwise and keeps the maximum:
// the array cross-product rule. A field absent on either side scores 0.
func (e *RecognitionEngine) fieldScore(candidate, existing map[string]interface{}, path string) float64 {
	candidateValues := fieldpath.GetAll(candidate, path)
	existingValues := fieldpath.GetAll(existing, path)
	if len(candidateValues) == 0 || len(existingValues) == 0 {
		return 0
	}

	best := 0.0
	for _, cv := range candidateValues {
		for _, ev := range existingValues {
			if score := e.valueScore(cv, ev); score > best {
				best = score
			}
			if best == 1.0 {
				return best
			}
		}
	}
	return best
}

// valueScore compares two leaf values as text. Exactly equal normalized
// strings score 1.0 outright so identical records never reach the LLM band.
func (e *RecognitionEngine) valueScore(a, b interface{}) float64 {
	textA := stringify(a)
	textB := stringify(b)
	if textA == "" || textB == "" {
		return 0
	}

	normA := textmatch.Normalize(textA)
	normB := textmatch.Normalize(textB)
	if normA != "" && normA == normB {
		return 1.0
	}
	return e.scorer.Score(textA, textB)
}

// decide applies the band policy:
//
//	c < lower               definite no-match
//	lower <= c < upper      ask the LLM
//	upper <= c < threshold  near-threshold match, no LLM
//	c >= threshold          definite match
func (e *RecognitionEngine) decide(ctx context.Context, candidate map[string]interface{}, best *storage.Record, confidence float64, opts types.RecognitionOptions) (*types.RecognitionResult, error) {
	switch {
	case confidence >= opts.Threshold:
		return &types.RecognitionResult{
			IsMatch:     true,
			Confidence:  confidence,
			MatchingKey: best.Key,
		}, nil

	case confidence < opts.LLMLowerBound:
		return &types.RecognitionResult{
			Confidence: confidence,
		}, nil

	case confidence >= opts.LLMUpperBound:
		return &types.RecognitionResult{
			IsMatch:     true,
			Confidence:  confidence,
			MatchingKey: best.Key,
			Explanation: fmt.Sprintf("confidence %.2f above llm band, accepted without disambiguation", confidence),
		}, nil
	}

	return e.disambiguate(ctx, candidate, best, confidence)
}

// disambiguate asks the LLM for a verdict on the uncertain pair. On any
// failure the deterministic verdict (no-match, since confidence is below
// the threshold) is returned with UsedLLM=true and a failure explanation,
// so the caller can see disambiguation was attempted.
func (e *RecognitionEngine) disambiguate(ctx context.Context, candidate map[string]interface{}, best *storage.Record, confidence float64) (*types.RecognitionResult, error) {
	if e.caller == nil {
		return &types.RecognitionResult{
			Confidence:  confidence,
			Explanation: fmt.Sprintf("confidence %.2f is in the uncertain band and no LLM caller is configured", confidence),
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return &types.RecognitionResult{
			Confidence:  confidence,
			UsedLLM:     true,
			Explanation: fmt.Sprintf("llm disambiguation cancelled: %v", err),
		}, nil
	}

	prompt := llm.BuildMatchPrompt(candidate, best.Value, confidence)
	completions, err := e.caller.Call(ctx, prompt, llm.CallOptions{
		JSONSchema:  llm.MatchVerdictSchema,
		Temperature: 0.1,
	})
	if err != nil {
		log.Printf("Warning: llm disambiguation failed: %v", err)
		return &types.RecognitionResult{
			Confidence:  confidence,
			UsedLLM:     true,
			Explanation: fmt.Sprintf("llm disambiguation failed (%v), falling back to deterministic verdict", err),
		}, nil
	}
	if len(completions) == 0 {
		return &types.RecognitionResult{
			Confidence:  confidence,
			UsedLLM:     true,
			Explanation: "llm disambiguation returned no completion, falling back to deterministic verdict",
		}, nil
	}

	verdict, err := llm.ParseMatchVerdict(completions[0].Content)
	if err != nil {
		log.Printf("Warning: llm verdict unparseable: %v", err)
		return &types.RecognitionResult{
			Confidence:  confidence,
			UsedLLM:     true,
			Explanation: fmt.Sprintf("llm verdict unparseable (%v), falling back to deterministic verdict", err),
		}, nil
	}

	result := &types.RecognitionResult{
		IsMatch:     verdict.IsMatch,
		Confidence:  verdict.Confidence,
		UsedLLM:     true,
		Explanation: verdict.Reasoning,
	}
	if verdict.IsMatch {
		result.MatchingKey = best.Key
	}
	return result, nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
