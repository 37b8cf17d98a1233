package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/engram/pkg/types"
)

func analyzeAndResolve(existing map[string]interface{}, sources ...map[string]interface{}) (map[string]interface{}, []types.Change) {
	report := NewDiffAnalyzer().Analyze(existing, sources)
	return NewAutoResolver().Resolve(existing, report)
}

func TestResolveLongestStringWins(t *testing.T) {
	existing := map[string]interface{}{"address": "iela 5"}
	resolved, changes := analyzeAndResolve(existing,
		map[string]interface{}{"address": "iela 5, full address with city"})

	assert.Equal(t, "iela 5, full address with city", resolved["address"])
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeResolvedConflict, changes[0].Action)
	assert.Equal(t, "iela 5", changes[0].OldValue)
	assert.Equal(t, types.SourceAutomatic, changes[0].Source)
}

func TestResolveAppliesSimpleAddition(t *testing.T) {
	existing := map[string]interface{}{"name": "Positivus"}
	resolved, changes := analyzeAndResolve(existing,
		map[string]interface{}{"venue": "Lucavsala"})

	assert.Equal(t, "Lucavsala", resolved["venue"])
	require.Len(t, changes, 1)
	assert.Equal(t, types.ChangeAdded, changes[0].Action)
	assert.Equal(t, "venue", changes[0].Field)
}

func TestResolveFillInConflict(t *testing.T) {
	existing := map[string]interface{}{"phone": ""}
	resolved, changes := analyzeAndResolve(existing,
		map[string]interface{}{"phone": "+371 20000000"})

	assert.Equal(t, "+371 20000000", resolved["phone"])
	require.Len(t, changes, 1)
}

func TestResolveLongestArrayWins(t *testing.T) {
	existing := map[string]interface{}{"tags": []interface{}{"music"}}
	resolved, _ := analyzeAndResolve(existing,
		map[string]interface{}{"tags": []interface{}{"music", "festival", "outdoor"}})

	assert.Equal(t, []interface{}{"music", "festival", "outdoor"}, resolved["tags"])
}

func TestResolveLeavesComplexConflictsUntouched(t *testing.T) {
	existing := map[string]interface{}{"description": "open air music festival"}
	resolved, changes := analyzeAndResolve(existing,
		map[string]interface{}{"description": "festival of music in open air"})

	assert.Equal(t, "open air music festival", resolved["description"])
	assert.Empty(t, changes)
}

func TestResolveDoesNotMutateExisting(t *testing.T) {
	existing := map[string]interface{}{
		"address": "iela 5",
		"nested":  map[string]interface{}{"phone": ""},
	}
	resolved, _ := analyzeAndResolve(existing,
		map[string]interface{}{
			"address": "iela 5, full address with city",
			"nested":  map[string]interface{}{"phone": "+371 20000000"},
		})

	assert.Equal(t, "iela 5", existing["address"])
	assert.Equal(t, "", existing["nested"].(map[string]interface{})["phone"])
	assert.Equal(t, "iela 5, full address with city", resolved["address"])
	assert.Equal(t, "+371 20000000", resolved["nested"].(map[string]interface{})["phone"])
}

func TestResolveNestedAddition(t *testing.T) {
	existing := map[string]interface{}{"venue": map[string]interface{}{"name": "Arena Riga"}}
	resolved, changes := analyzeAndResolve(existing,
		map[string]interface{}{"venue": map[string]interface{}{"name": "Arena Riga", "capacity": float64(10300)}})

	assert.Equal(t, float64(10300), resolved["venue"].(map[string]interface{})["capacity"])
	require.Len(t, changes, 1)
	assert.Equal(t, "venue.capacity", changes[0].Field)
}

func TestPickValue(t *testing.T) {
	tests := []struct {
		name       string
		fallback   interface{}
		candidates []interface{}
		want       interface{}
	}{
		{"sole non-empty", "old", []interface{}{"", "new", nil}, "new"},
		{"longest string", "old", []interface{}{"short", "much longer value"}, "much longer value"},
		{"longest array", nil, []interface{}{[]interface{}{1.0}, []interface{}{1.0, 2.0}}, []interface{}{1.0, 2.0}},
		{"all empty keeps fallback", "old", []interface{}{"", nil}, "old"},
		{"mixed types keeps fallback", "old", []interface{}{"a", 5.0}, "old"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickValue(tt.fallback, tt.candidates))
		})
	}
}
