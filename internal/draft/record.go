// internal/draft/record.go
package draft

import (
	"reflect"
	"sort"
)

// Record is one entity body keyed by field name.
type Record map[string]any

// Collection maps record keys to record bodies.
type Collection map[string]Record

// Keys returns the record keys in sorted order.
func (c Collection) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the collection.
func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}
	out := make(Collection, len(c))
	for k, r := range c {
		out[k] = r.Clone()
	}
	return out
}

// Equal compares two collections structurally.
func (c Collection) Equal(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	for k, r := range c {
		o, ok := other[k]
		if !ok || !r.Equal(o) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Equal compares two records structurally.
func (r Record) Equal(other Record) bool {
	return reflect.DeepEqual(map[string]any(r), map[string]any(other))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, x := range t {
			out[i], _ = cloneValue(x).(map[string]any)
		}
		return out
	default:
		return v
	}
}
