package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/engram/pkg/types"
)

func TestAnalyzeNoDifferences(t *testing.T) {
	existing := map[string]interface{}{"name": "Positivus", "year": 2024}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"name": "Positivus", "year": 2024},
	})

	assert.Empty(t, report.Additions)
	assert.Empty(t, report.Conflicts)
	assert.False(t, report.HasComplexConflicts)
}

func TestAnalyzeAddition(t *testing.T) {
	existing := map[string]interface{}{"name": "Positivus"}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"name": "Positivus", "venue": "Lucavsala"},
	})

	require.Len(t, report.Additions, 1)
	addition := report.Additions[0]
	assert.Equal(t, "venue", addition.Field)
	assert.Equal(t, []interface{}{"Lucavsala"}, addition.Values)
	assert.True(t, addition.IsSimple)
	assert.Empty(t, report.Conflicts)
}

func TestAnalyzeSimpleConflictLongestString(t *testing.T) {
	existing := map[string]interface{}{"address": "iela 5"}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"address": "iela 5, full address with city"},
	})

	require.Len(t, report.Conflicts, 1)
	conflict := report.Conflicts[0]
	assert.Equal(t, "address", conflict.Field)
	assert.Equal(t, "iela 5", conflict.ExistingValue)
	assert.True(t, conflict.IsSimple)
	assert.False(t, report.HasComplexConflicts)
}

func TestAnalyzeComplexConflictSimilarLengthStrings(t *testing.T) {
	// Neither string is more than double the other's length, so the
	// longest-wins heuristic does not apply.
	existing := map[string]interface{}{"description": "open air music festival"}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"description": "festival of music in open air"},
	})

	require.Len(t, report.Conflicts, 1)
	assert.False(t, report.Conflicts[0].IsSimple)
	assert.True(t, report.HasComplexConflicts)
}

func TestAnalyzeComplexConflictStructuredObjects(t *testing.T) {
	existing := map[string]interface{}{
		"organizer": map[string]interface{}{"name": "SIA Kultura", "phone": "111"},
	}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"organizer": map[string]interface{}{"name": "Kultura Ltd", "phone": "222"}},
		{"organizer": map[string]interface{}{"name": "SIA Kultura", "phone": "333"}},
	})

	assert.True(t, report.HasComplexConflicts)
}

func TestAnalyzeSimpleConflictArrayContainment(t *testing.T) {
	existing := map[string]interface{}{"tags": []interface{}{"music"}}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"tags": []interface{}{"music", "festival", "outdoor"}},
	})

	require.Len(t, report.Conflicts, 1)
	assert.True(t, report.Conflicts[0].IsSimple)
}

func TestAnalyzeComplexConflictEqualLengthArrays(t *testing.T) {
	existing := map[string]interface{}{"tags": []interface{}{"music", "indoor"}}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"tags": []interface{}{"sports", "outdoor"}},
	})

	require.Len(t, report.Conflicts, 1)
	assert.False(t, report.Conflicts[0].IsSimple)
	assert.True(t, report.HasComplexConflicts)
}

func TestAnalyzeFillInConflictIsSimple(t *testing.T) {
	existing := map[string]interface{}{"phone": ""}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"phone": "+371 20000000"},
	})

	require.Len(t, report.Conflicts, 1)
	assert.True(t, report.Conflicts[0].IsSimple)
}

func TestAnalyzeNestedPaths(t *testing.T) {
	existing := map[string]interface{}{
		"venue": map[string]interface{}{"name": "Arena Riga"},
	}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"venue": map[string]interface{}{"name": "Arena Riga", "capacity": float64(10300)}},
	})

	require.Len(t, report.Additions, 1)
	assert.Equal(t, "venue.capacity", report.Additions[0].Field)
}

func TestAnalyzeMalformedSourceIgnored(t *testing.T) {
	existing := map[string]interface{}{
		"venue": map[string]interface{}{"name": "Arena Riga"},
	}
	// venue is a scalar here; the walker reports no value at venue.name
	// instead of failing the whole analysis.
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"venue": "not an object"},
	})

	for _, conflict := range report.Conflicts {
		assert.NotEqual(t, "venue.name", conflict.Field)
	}
}

func TestAnalyzeMultipleSourcesDistinctValues(t *testing.T) {
	existing := map[string]interface{}{}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"city": "Riga"},
		{"city": "Riga"},
		{"city": "Jurmala"},
	})

	require.Len(t, report.Additions, 1)
	addition := report.Additions[0]
	assert.Len(t, addition.Values, 2)
	assert.False(t, addition.IsSimple)
	assert.True(t, report.HasComplexConflicts)
}

func TestAnalyzeObjectArrayComparedPerElementField(t *testing.T) {
	existing := map[string]interface{}{
		"speakers": []interface{}{map[string]interface{}{"name": "Anna"}},
	}
	report := NewDiffAnalyzer().Analyze(existing, []map[string]interface{}{
		{"speakers": []interface{}{map[string]interface{}{"name": "Anna", "topic": "matching engines"}}},
	})

	require.Len(t, report.Additions, 1)
	assert.Equal(t, "speakers.topic", report.Additions[0].Field)
}

func TestIsSimpleValueSetRules(t *testing.T) {
	tests := []struct {
		name   string
		values []interface{}
		want   bool
	}{
		{"single value", []interface{}{"x"}, true},
		{"one non-empty", []interface{}{"", "x", nil}, true},
		{"longest more than double", []interface{}{"ab", "abcdefgh"}, true},
		{"longest not double", []interface{}{"abcd", "abcdefg"}, false},
		{"mixed types", []interface{}{"x", float64(5)}, false},
		{"arrays unique longest", []interface{}{[]interface{}{1.0}, []interface{}{1.0, 2.0}}, true},
		{"arrays tied length", []interface{}{[]interface{}{1.0}, []interface{}{2.0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isSimpleValueSet(tt.values))
		})
	}
}

func TestDiffReportTypesRoundTrip(t *testing.T) {
	report := &types.DiffReport{
		Additions: []types.FieldAddition{{Field: "a", Values: []interface{}{"v"}, IsSimple: true}},
	}
	assert.True(t, report.Additions[0].IsSimple)
}
