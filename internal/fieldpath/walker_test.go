package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() map[string]interface{} {
	return map[string]interface{}{
		"title": "AI Summit 2024",
		"venue": map[string]interface{}{
			"name": "Expo Hall",
			"city": "Riga",
		},
		"speakers": []interface{}{
			map[string]interface{}{"name": "Anna", "topic": "agents"},
			map[string]interface{}{"name": "Boris", "topic": "memory"},
		},
		"tags": []interface{}{"ai", "conference"},
	}
}

func TestPaths(t *testing.T) {
	paths := Paths(sampleRecord())

	assert.Contains(t, paths, "title")
	assert.Contains(t, paths, "venue.name")
	assert.Contains(t, paths, "venue.city")
	assert.Contains(t, paths, "tags")
	// Arrays of objects expose nested paths via their first element.
	assert.Contains(t, paths, "speakers")
	assert.Contains(t, paths, "speakers.name")
	assert.Contains(t, paths, "speakers.topic")
	assert.NotContains(t, paths, "speakers.0.name")
}

func TestPathsScalarAndNil(t *testing.T) {
	assert.Empty(t, Paths(nil))
	assert.Empty(t, Paths("just a string"))
	assert.Empty(t, Paths(map[string]interface{}{}))
}

func TestGet(t *testing.T) {
	rec := sampleRecord()

	v, ok := Get(rec, "venue.city")
	require.True(t, ok)
	assert.Equal(t, "Riga", v)

	// Array mid-path traverses the first element.
	v, ok = Get(rec, "speakers.name")
	require.True(t, ok)
	assert.Equal(t, "Anna", v)

	_, ok = Get(rec, "venue.country")
	assert.False(t, ok)

	// Malformed: walking through a scalar yields "no value", not a panic.
	_, ok = Get(rec, "title.subfield")
	assert.False(t, ok)

	_, ok = Get("not an object", "any.path")
	assert.False(t, ok)
}

func TestGetAllArrayExpansion(t *testing.T) {
	rec := sampleRecord()

	names := GetAll(rec, "speakers[].name")
	assert.Equal(t, []interface{}{"Anna", "Boris"}, names)

	tags := GetAll(rec, "tags[]")
	assert.Equal(t, []interface{}{"ai", "conference"}, tags)

	// No marker: the array itself is the single value.
	whole := GetAll(rec, "tags")
	require.Len(t, whole, 1)

	// Marker over a scalar degrades to a single value.
	title := GetAll(rec, "title[]")
	assert.Equal(t, []interface{}{"AI Summit 2024"}, title)

	assert.Empty(t, GetAll(rec, "missing[].name"))
	assert.Empty(t, GetAll(nil, "anything"))
}

func TestSet(t *testing.T) {
	rec := map[string]interface{}{}

	require.NoError(t, Set(rec, "venue.city", "Riga"))
	v, ok := Get(rec, "venue.city")
	require.True(t, ok)
	assert.Equal(t, "Riga", v)

	// Existing intermediate object is reused, not replaced.
	require.NoError(t, Set(rec, "venue.name", "Expo Hall"))
	v, _ = Get(rec, "venue.city")
	assert.Equal(t, "Riga", v)

	// Writing through a scalar fails.
	require.NoError(t, Set(rec, "title", "AI Summit"))
	assert.Error(t, Set(rec, "title.sub", "x"))

	assert.Error(t, Set(rec, "", "x"))
}

func TestDeepCloneIndependence(t *testing.T) {
	rec := sampleRecord()
	clone := DeepClone(rec).(map[string]interface{})

	require.NoError(t, Set(clone, "venue.city", "Tallinn"))
	clone["tags"].([]interface{})[0] = "changed"

	v, _ := Get(rec, "venue.city")
	assert.Equal(t, "Riga", v)
	assert.Equal(t, "ai", rec["tags"].([]interface{})[0])
}

func TestDeepEqual(t *testing.T) {
	assert.True(t, DeepEqual(sampleRecord(), sampleRecord()))
	assert.True(t, DeepEqual(nil, nil))
	assert.False(t, DeepEqual(sampleRecord(), nil))

	// Numeric renditions compare by magnitude.
	assert.True(t, DeepEqual(map[string]interface{}{"n": 3}, map[string]interface{}{"n": 3.0}))
	assert.False(t, DeepEqual(map[string]interface{}{"n": 3}, map[string]interface{}{"n": 4}))

	a := sampleRecord()
	b := sampleRecord()
	b["title"] = "Different Event"
	assert.False(t, DeepEqual(a, b))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty("   "))
	assert.True(t, IsEmpty([]interface{}{}))
	assert.True(t, IsEmpty(map[string]interface{}{}))

	assert.False(t, IsEmpty("x"))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty(false))
	assert.False(t, IsEmpty([]interface{}{1}))
}
