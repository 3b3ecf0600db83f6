package aggregate

import (
	"fmt"
	"reflect"
)

// FlatteningAggregator implements Flatten: one aggregate per distinct
// element across the sequences selected from the source facts.
type FlatteningAggregator struct {
	selector Selector
	elements map[Fact][]any
	counts   map[any]int
	current  map[any]any
	order    keyOrder
}

// NewFlattening creates a flattening aggregator over selector.
// The selector must return a slice or array (nil means empty).
func NewFlattening(selector Selector) *FlatteningAggregator {
	return &FlatteningAggregator{
		selector: selector,
		elements: make(map[Fact][]any),
		counts:   make(map[any]int),
		current:  make(map[any]any),
	}
}

func (a *FlatteningAggregator) flatten(facts []Fact) ([][]any, error) {
	out := make([][]any, len(facts))
	for i, f := range facts {
		v, err := a.selector(f)
		if err != nil {
			return nil, err
		}
		seq, err := toSequence(v)
		if err != nil {
			return nil, err
		}
		out[i] = seq
	}
	return out, nil
}

// Add emits Added for every element not already materialized.
func (a *FlatteningAggregator) Add(facts []Fact) ([]Result, error) {
	seqs, err := a.flatten(facts)
	if err != nil {
		return nil, err
	}
	var results resultList
	for i, f := range facts {
		a.elements[f] = seqs[i]
		for _, e := range seqs[i] {
			a.retain(e, &results)
		}
	}
	return results.list(), nil
}

// Modify diffs each fact's previous and current sequence. Dropped elements
// are released, new ones retained and elements present in both reported
// as Modified.
func (a *FlatteningAggregator) Modify(facts []Fact) ([]Result, error) {
	seqs, err := a.flatten(facts)
	if err != nil {
		return nil, err
	}
	var results resultList
	for i, f := range facts {
		prev := countElements(a.elements[f])
		next := countElements(seqs[i])
		a.elements[f] = seqs[i]

		for _, e := range a.materialized(prev) {
			k := ValueKey(e)
			if _, kept := next[k]; !kept {
				for n := prev[k]; n > 0; n-- {
					a.release(e, &results)
				}
			}
		}
		seen := make(map[any]bool)
		for _, e := range seqs[i] {
			k := ValueKey(e)
			if seen[k] {
				continue
			}
			seen[k] = true
			old, had := prev[k]
			switch {
			case !had:
				for n := next[k]; n > 0; n-- {
					a.retain(e, &results)
				}
			default:
				a.counts[k] += next[k] - old
				previous := a.current[k]
				a.current[k] = e
				results.add(Modified, e, previous)
			}
		}
	}
	return results.list(), nil
}

// Remove releases all elements of facts.
func (a *FlatteningAggregator) Remove(facts []Fact) ([]Result, error) {
	var results resultList
	for _, f := range facts {
		seq, known := a.elements[f]
		if !known {
			continue
		}
		delete(a.elements, f)
		for _, e := range seq {
			a.release(e, &results)
		}
	}
	return results.list(), nil
}

// Aggregates returns the distinct flattened elements.
func (a *FlatteningAggregator) Aggregates() []any {
	out := make([]any, 0, len(a.order.keys))
	for _, k := range a.order.keys {
		out = append(out, a.current[k])
	}
	return out
}

// materialized returns one representative per key of counts, taken from the
// materialized values so removal reports the stored element.
func (a *FlatteningAggregator) materialized(counts map[any]int) []any {
	out := make([]any, 0, len(counts))
	for _, k := range a.order.keys {
		if _, ok := counts[k]; ok {
			out = append(out, a.current[k])
		}
	}
	return out
}

func (a *FlatteningAggregator) retain(e any, results *resultList) {
	k := ValueKey(e)
	a.counts[k]++
	if a.counts[k] == 1 {
		a.current[k] = e
		a.order.add(k)
		results.add(Added, e, nil)
	}
}

func (a *FlatteningAggregator) release(e any, results *resultList) {
	k := ValueKey(e)
	a.counts[k]--
	if a.counts[k] > 0 {
		return
	}
	stored := a.current[k]
	delete(a.counts, k)
	delete(a.current, k)
	a.order.remove(k)
	results.add(Removed, stored, nil)
}

func countElements(seq []any) map[any]int {
	counts := make(map[any]int, len(seq))
	for _, e := range seq {
		counts[ValueKey(e)]++
	}
	return counts
}

// toSequence converts a selector result into a slice of elements.
func toSequence(v any) ([]any, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("flatten selector returned %T, want a slice", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}
