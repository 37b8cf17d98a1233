package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MatchVerdictSchema is the response schema for match disambiguation.
var MatchVerdictSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"is_match":   map[string]interface{}{"type": "boolean"},
		"confidence": map[string]interface{}{"type": "number"},
		"reasoning":  map[string]interface{}{"type": "string"},
	},
	"required": []string{"is_match", "confidence", "reasoning"},
}

// BuildMatchPrompt builds the disambiguation prompt for a candidate whose
// similarity score landed in the uncertainty band. Both records are shown
// verbatim so the model can weigh fields the scorer ignored.
func BuildMatchPrompt(candidate, existing map[string]interface{}, score float64) string {
	candidateJSON, _ := json.MarshalIndent(candidate, "", "  ")
	existingJSON, _ := json.MarshalIndent(existing, "", "  ")

	var sb strings.Builder
	sb.WriteString("You are deciding whether two records describe the same real-world entity.\n\n")
	sb.WriteString("New record:\n")
	sb.Write(candidateJSON)
	sb.WriteString("\n\nExisting record:\n")
	sb.Write(existingJSON)
	sb.WriteString(fmt.Sprintf("\n\nA text similarity scorer rated them %.2f on a 0-1 scale, which is inconclusive.\n", score))
	sb.WriteString("Consider spelling variants, abbreviations, word order, and partial information.\n")
	sb.WriteString("Two records about different entities that merely share some words are NOT a match.\n\n")
	sb.WriteString(`Respond with JSON: {"is_match": <bool>, "confidence": <0.0-1.0>, "reasoning": "<short explanation>"}`)
	return sb.String()
}

// ConsolidationInput carries everything the consolidation prompt needs.
type ConsolidationInput struct {
	// Base is the record after automatic conflict resolution.
	Base map[string]interface{}

	// Sources are the original additional records, verbatim.
	Sources []map[string]interface{}

	// ConflictFields names the fields that could not be auto-resolved.
	ConflictFields []string

	// Goal overrides the default consolidation instruction when set.
	Goal string

	// FocusFields restricts attention to specific fields when non-empty.
	FocusFields []string
}

// BuildConsolidationPrompt builds the prompt asking the model to merge
// complex conflicts into a single consolidated record.
func BuildConsolidationPrompt(in ConsolidationInput) string {
	baseJSON, _ := json.MarshalIndent(in.Base, "", "  ")

	var sb strings.Builder
	sb.WriteString("You are consolidating information about a single entity from multiple sources.\n\n")
	sb.WriteString("Current consolidated record:\n")
	sb.Write(baseJSON)
	sb.WriteString("\n\nSource records:\n")
	for i, src := range in.Sources {
		srcJSON, _ := json.MarshalIndent(src, "", "  ")
		sb.WriteString(fmt.Sprintf("Source %d:\n", i+1))
		sb.Write(srcJSON)
		sb.WriteString("\n")
	}
	if len(in.ConflictFields) > 0 {
		sb.WriteString("\nFields with conflicting values that need your judgment: ")
		sb.WriteString(strings.Join(in.ConflictFields, ", "))
		sb.WriteString("\n")
	}
	if in.Goal != "" {
		sb.WriteString("\nConsolidation goal: " + in.Goal + "\n")
	} else {
		sb.WriteString("\nMerge the sources into the record, preferring the most complete and specific values. Combine complementary details rather than discarding them.\n")
	}
	if len(in.FocusFields) > 0 {
		sb.WriteString("Only change these fields, leave everything else exactly as it is: ")
		sb.WriteString(strings.Join(in.FocusFields, ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond with a single JSON object: the full consolidated record. Do not include commentary.")
	return sb.String()
}
