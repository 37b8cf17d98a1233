// Package fieldpath walks nested JSON-like values by dotted field paths.
//
// A path is a dot-separated list of object keys. A segment may carry the
// "[]" suffix to mark array expansion ("event.titles[]"): expansion yields
// every element of the array at that segment instead of the array itself.
// Arrays without the marker are treated as leaf values; nested paths inside
// arrays are discovered through the first element only, which keeps path
// enumeration type-generic without per-index paths.
//
// The walker never panics on malformed data. Reading a path through a
// non-object simply reports "no value at path", so a single malformed
// source cannot abort a whole diff or enrichment run.
package fieldpath

import (
	"fmt"
	"sort"
	"strings"
)

// ArrayMarker is the suffix marking array expansion in a path segment.
const ArrayMarker = "[]"

// Paths enumerates the dotted leaf paths of a nested value, sorted for
// deterministic iteration. Arrays contribute their own path as a leaf;
// when the first element is an object, the element's paths are appended
// beneath the array's path as well, so callers see both "attendees" and
// "attendees.name".
func Paths(value interface{}) []string {
	set := make(map[string]bool)
	collectPaths(value, "", set)

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func collectPaths(value interface{}, prefix string, out map[string]bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 0 && prefix != "" {
			out[prefix] = true
			return
		}
		for key, child := range v {
			collectPaths(child, joinPath(prefix, key), out)
		}
	case []interface{}:
		if prefix != "" {
			out[prefix] = true
		}
		// Discover nested structure through the first element only.
		if len(v) > 0 {
			if _, ok := v[0].(map[string]interface{}); ok {
				collectPaths(v[0], prefix, out)
			}
		}
	default:
		if prefix != "" {
			out[prefix] = true
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Get reads the value at a dotted path. It returns ok=false when any
// intermediate value is not an object or the key is absent. Arrays in the
// middle of a path are traversed through their first element.
func Get(value interface{}, path string) (interface{}, bool) {
	if path == "" {
		return value, true
	}

	current := value
	for _, segment := range strings.Split(path, ".") {
		segment = strings.TrimSuffix(segment, ArrayMarker)

		// Step through an array via its first element.
		if arr, ok := current.([]interface{}); ok {
			if len(arr) == 0 {
				return nil, false
			}
			current = arr[0]
		}

		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// GetAll reads the values at a path, honoring array expansion markers.
// A segment with the "[]" suffix fans out over every element of the array
// at that segment; the result is the flattened list of values reached.
// A path without markers yields at most one value. Missing or malformed
// intermediates contribute nothing.
func GetAll(value interface{}, path string) []interface{} {
	if path == "" {
		if value == nil {
			return nil
		}
		return []interface{}{value}
	}
	return getAll(value, strings.Split(path, "."))
}

func getAll(value interface{}, segments []string) []interface{} {
	if len(segments) == 0 {
		if value == nil {
			return nil
		}
		return []interface{}{value}
	}

	segment := segments[0]
	expand := strings.HasSuffix(segment, ArrayMarker)
	key := strings.TrimSuffix(segment, ArrayMarker)

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	child, ok := obj[key]
	if !ok {
		return nil
	}

	if expand {
		arr, ok := child.([]interface{})
		if !ok {
			// A scalar where an array was expected still counts as a
			// single candidate value.
			return getAll(child, segments[1:])
		}
		var out []interface{}
		for _, elem := range arr {
			out = append(out, getAll(elem, segments[1:])...)
		}
		return out
	}

	return getAll(child, segments[1:])
}

// Set writes a value at a dotted path, creating intermediate objects as
// needed. It fails when an existing intermediate is not an object; it never
// creates or indexes into arrays.
func Set(target map[string]interface{}, path string, value interface{}) error {
	if path == "" {
		return fmt.Errorf("fieldpath: empty path")
	}

	segments := strings.Split(path, ".")
	current := target
	for _, segment := range segments[:len(segments)-1] {
		segment = strings.TrimSuffix(segment, ArrayMarker)
		child, ok := current[segment]
		if !ok || child == nil {
			next := make(map[string]interface{})
			current[segment] = next
			current = next
			continue
		}
		next, ok := child.(map[string]interface{})
		if !ok {
			return fmt.Errorf("fieldpath: %q is not an object", segment)
		}
		current = next
	}

	current[strings.TrimSuffix(segments[len(segments)-1], ArrayMarker)] = value
	return nil
}

// DeepClone returns a structurally independent copy of a JSON-like value.
// Maps and slices are cloned recursively; scalars are returned as-is.
func DeepClone(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			out[key] = DeepClone(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			out[i] = DeepClone(child)
		}
		return out
	default:
		return v
	}
}

// DeepEqual compares two JSON-like values structurally. Numeric values are
// compared by magnitude so that int and float64 renditions of the same
// number (a common artifact of mixed decoding) compare equal.
func DeepEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if na, ok := toFloat(a); ok {
		nb, ok := toFloat(b)
		return ok && na == nb
	}

	switch va := a.(type) {
	case map[string]interface{}:
		vb, ok := b.(map[string]interface{})
		if !ok || len(va) != len(vb) {
			return false
		}
		for key, childA := range va {
			childB, ok := vb[key]
			if !ok || !DeepEqual(childA, childB) {
				return false
			}
		}
		return true
	case []interface{}:
		vb, ok := b.([]interface{})
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !DeepEqual(va[i], vb[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// IsEmpty reports whether a value carries no information: nil, empty or
// whitespace-only string, empty slice, or empty map.
func IsEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	default:
		return false
	}
}
