package engine

import (
	"sort"
	"strings"

	"github.com/scrypster/engram/internal/fieldpath"
	"github.com/scrypster/engram/pkg/types"
)

// DiffAnalyzer compares an existing record against additional sources per
// field path, classifying each disagreement as an addition or a conflict
// and each conflict as simple (auto-resolvable) or complex (needs the LLM).
type DiffAnalyzer struct{}

// NewDiffAnalyzer creates a diff analyzer.
func NewDiffAnalyzer() *DiffAnalyzer {
	return &DiffAnalyzer{}
}

// Analyze walks the field-path union of the existing record and every
// source. Paths extended by deeper paths in the union are skipped, so
// arrays of objects are compared per element field while arrays of scalars
// are compared whole.
func (d *DiffAnalyzer) Analyze(existing map[string]interface{}, sources []map[string]interface{}) *types.DiffReport {
	report := &types.DiffReport{}

	for _, path := range leafPathUnion(existing, sources) {
		existingValue, existingOK := fieldpath.Get(existing, path)

		var sourceValues []interface{}
		for _, source := range sources {
			if value, ok := fieldpath.Get(source, path); ok {
				sourceValues = append(sourceValues, value)
			}
		}
		if len(sourceValues) == 0 {
			continue
		}

		if !existingOK {
			addition := buildAddition(path, sourceValues)
			if addition == nil {
				continue
			}
			report.Additions = append(report.Additions, *addition)
			if !addition.IsSimple {
				report.HasComplexConflicts = true
			}
			continue
		}

		conflict := buildConflict(path, existingValue, sourceValues)
		if conflict == nil {
			continue
		}
		report.Conflicts = append(report.Conflicts, *conflict)
		if !conflict.IsSimple {
			report.HasComplexConflicts = true
		}
	}

	return report
}

// leafPathUnion collects the sorted union of leaf paths across the existing
// record and all sources, dropping any path that another path extends.
func leafPathUnion(existing map[string]interface{}, sources []map[string]interface{}) []string {
	set := make(map[string]bool)
	for _, path := range fieldpath.Paths(existing) {
		set[path] = true
	}
	for _, source := range sources {
		for _, path := range fieldpath.Paths(source) {
			set[path] = true
		}
	}

	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	leaves := make([]string, 0, len(paths))
	for i, path := range paths {
		extended := false
		for _, other := range paths[i+1:] {
			if strings.HasPrefix(other, path+".") {
				extended = true
				break
			}
		}
		if !extended {
			leaves = append(leaves, path)
		}
	}
	return leaves
}

func buildAddition(path string, sourceValues []interface{}) *types.FieldAddition {
	unique := distinctValues(sourceValues)
	nonEmpty := filterNonEmpty(unique)
	if len(nonEmpty) == 0 {
		return nil
	}

	return &types.FieldAddition{
		Field:    path,
		Values:   unique,
		IsSimple: len(nonEmpty) == 1 || isSimpleValueSet(unique),
	}
}

func buildConflict(path string, existingValue interface{}, sourceValues []interface{}) *types.FieldConflict {
	differs := false
	for _, value := range sourceValues {
		if !fieldpath.DeepEqual(existingValue, value) {
			differs = true
			break
		}
	}
	if !differs {
		return nil
	}

	unique := distinctValues(append([]interface{}{existingValue}, sourceValues...))
	return &types.FieldConflict{
		Field:            path,
		ExistingValue:    existingValue,
		AdditionalValues: sourceValues,
		UniqueValues:     unique,
		IsSimple:         isSimpleValueSet(unique),
	}
}

// isSimpleValueSet reports whether a cheap heuristic can settle the value
// set without the LLM:
//
//	(a) at most one value is non-empty (trivial fill-in)
//	(b) all values are strings and the longest is more than double the
//	    shortest (longer means more complete)
//	(c) all values are arrays with a unique longest one
func isSimpleValueSet(unique []interface{}) bool {
	nonEmpty := filterNonEmpty(unique)
	if len(nonEmpty) <= 1 {
		return true
	}

	if allStrings(nonEmpty) {
		shortest, longest := stringLengthExtremes(nonEmpty)
		return longest > 2*shortest
	}

	if allArrays(nonEmpty) {
		return hasUniqueLongestArray(nonEmpty)
	}

	return false
}

func distinctValues(values []interface{}) []interface{} {
	var unique []interface{}
	for _, value := range values {
		duplicate := false
		for _, seen := range unique {
			if fieldpath.DeepEqual(value, seen) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, value)
		}
	}
	return unique
}

func filterNonEmpty(values []interface{}) []interface{} {
	var out []interface{}
	for _, value := range values {
		if !fieldpath.IsEmpty(value) {
			out = append(out, value)
		}
	}
	return out
}

func allStrings(values []interface{}) bool {
	for _, value := range values {
		if _, ok := value.(string); !ok {
			return false
		}
	}
	return true
}

func allArrays(values []interface{}) bool {
	for _, value := range values {
		if _, ok := value.([]interface{}); !ok {
			return false
		}
	}
	return true
}

func stringLengthExtremes(values []interface{}) (shortest, longest int) {
	for i, value := range values {
		length := len(value.(string))
		if i == 0 || length < shortest {
			shortest = length
		}
		if length > longest {
			longest = length
		}
	}
	return shortest, longest
}

func hasUniqueLongestArray(values []interface{}) bool {
	longest, count := 0, 0
	for _, value := range values {
		length := len(value.([]interface{}))
		switch {
		case length > longest:
			longest, count = length, 1
		case length == longest:
			count++
		}
	}
	return count == 1
}
