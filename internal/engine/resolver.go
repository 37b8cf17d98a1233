package engine

import (
	"log"

	"github.com/scrypster/engram/internal/fieldpath"
	"github.com/scrypster/engram/pkg/types"
)

// AutoResolver applies simple additions and settles simple conflicts with
// deterministic heuristics, producing an audit Change for every write.
// Complex disagreements are left untouched for the LLM consolidator.
type AutoResolver struct{}

// NewAutoResolver creates an auto-resolver.
func NewAutoResolver() *AutoResolver {
	return &AutoResolver{}
}

// Resolve deep-clones the existing record and applies every simple addition
// and simple conflict from the report. The existing record is never
// mutated. Changes are emitted in report order, additions first.
func (r *AutoResolver) Resolve(existing map[string]interface{}, report *types.DiffReport) (map[string]interface{}, []types.Change) {
	resolved := fieldpath.DeepClone(existing).(map[string]interface{})
	var changes []types.Change

	for _, addition := range report.Additions {
		if !addition.IsSimple {
			continue
		}
		value := pickValue(nil, addition.Values)
		if fieldpath.IsEmpty(value) {
			continue
		}
		if err := fieldpath.Set(resolved, addition.Field, value); err != nil {
			log.Printf("Warning: cannot apply addition at %s: %v", addition.Field, err)
			continue
		}
		changes = append(changes, types.Change{
			Field:    addition.Field,
			Action:   types.ChangeAdded,
			NewValue: value,
			Source:   types.SourceAutomatic,
		})
	}

	for _, conflict := range report.Conflicts {
		if !conflict.IsSimple {
			continue
		}
		value := pickValue(conflict.ExistingValue, conflict.UniqueValues)
		if fieldpath.DeepEqual(value, conflict.ExistingValue) {
			continue
		}
		if err := fieldpath.Set(resolved, conflict.Field, value); err != nil {
			log.Printf("Warning: cannot resolve conflict at %s: %v", conflict.Field, err)
			continue
		}
		changes = append(changes, types.Change{
			Field:    conflict.Field,
			Action:   types.ChangeResolvedConflict,
			OldValue: conflict.ExistingValue,
			NewValue: value,
			Source:   types.SourceAutomatic,
		})
	}

	return resolved, changes
}

// pickValue selects the winning value from a set of candidates: the sole
// non-empty value, otherwise the longest string, otherwise the longest
// array, otherwise the fallback.
func pickValue(fallback interface{}, candidates []interface{}) interface{} {
	nonEmpty := filterNonEmpty(candidates)
	if len(nonEmpty) == 0 {
		return fallback
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0]
	}

	if allStrings(nonEmpty) {
		longest := nonEmpty[0]
		for _, value := range nonEmpty[1:] {
			if len(value.(string)) > len(longest.(string)) {
				longest = value
			}
		}
		return longest
	}

	if allArrays(nonEmpty) {
		longest := nonEmpty[0]
		for _, value := range nonEmpty[1:] {
			if len(value.([]interface{})) > len(longest.([]interface{})) {
				longest = value
			}
		}
		return longest
	}

	return fallback
}
