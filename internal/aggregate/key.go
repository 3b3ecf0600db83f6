package aggregate

import (
	"fmt"
	"reflect"
)

// DefaultKey is the key used for a nil group key or projected nil value.
// Map lookups never see a bare nil interface.
type DefaultKey struct{}

// String returns the display form of the default key.
func (DefaultKey) String() string { return "<default>" }

// fallbackKey wraps the formatted form of a non-comparable value.
type fallbackKey struct {
	typ  reflect.Type
	repr string
}

// ValueKey returns a comparable key implementing value equality for v.
//
// Comparable values are their own key. Non-comparable values (slices, maps,
// or interface fields holding them) are keyed by their type and %#v
// representation.
func ValueKey(v any) any {
	if v == nil {
		return DefaultKey{}
	}
	if reflect.ValueOf(v).Comparable() {
		return v
	}
	return fallbackKey{typ: reflect.TypeOf(v), repr: fmt.Sprintf("%#v", v)}
}

// resultList accumulates results for one call, coalescing repeated changes
// to the same aggregate so the node performs exactly one operation each.
type resultList struct {
	results []Result
	index   map[any]int
}

func (l *resultList) add(action Action, aggregate, previous any) {
	if l.index == nil {
		l.index = make(map[any]int)
	}
	key := ValueKey(aggregate)
	if i, ok := l.index[key]; ok {
		existing := &l.results[i]
		switch {
		case existing.Action == Added && action == Removed:
			existing.Action = 0 // net no-op
		case existing.Action == Removed && action == Added:
			existing.Action = Modified
			existing.Previous = existing.Aggregate
			existing.Aggregate = aggregate
		case action == Removed:
			existing.Action = Removed
		default:
			existing.Aggregate = aggregate
		}
		return
	}
	l.index[key] = len(l.results)
	l.results = append(l.results, Result{Action: action, Aggregate: aggregate, Previous: previous})
}

func (l *resultList) list() []Result {
	out := make([]Result, 0, len(l.results))
	for _, r := range l.results {
		if r.Action != 0 {
			out = append(out, r)
		}
	}
	return out
}

// keyOrder remembers the order in which keys first appeared.
type keyOrder struct {
	keys []any
	pos  map[any]int
}

func (o *keyOrder) add(k any) {
	if o.pos == nil {
		o.pos = make(map[any]int)
	}
	if _, ok := o.pos[k]; ok {
		return
	}
	o.pos[k] = len(o.keys)
	o.keys = append(o.keys, k)
}

func (o *keyOrder) remove(k any) {
	i, ok := o.pos[k]
	if !ok {
		return
	}
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	delete(o.pos, k)
	for j := i; j < len(o.keys); j++ {
		o.pos[o.keys[j]] = j
	}
}
