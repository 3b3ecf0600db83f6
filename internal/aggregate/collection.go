package aggregate

import "slices"

// Collection is the aggregate produced by Collect: the current set of
// matching facts, in the order they started matching.
type Collection struct {
	facts []Fact
}

// Len returns the number of collected facts.
func (c *Collection) Len() int {
	return len(c.facts)
}

// Items returns the current fact values.
func (c *Collection) Items() []any {
	out := make([]any, len(c.facts))
	for i, f := range c.facts {
		out[i] = f.Value()
	}
	return out
}

// Items returns the collection values converted to T, skipping values of
// other types.
func Items[T any](c *Collection) []T {
	out := make([]T, 0, c.Len())
	for _, f := range c.facts {
		if v, ok := f.Value().(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// CollectionAggregator implements Collect.
//
// Emptiness policy: the first Add (including the empty initial add made when
// a left tuple arrives) emits Added; every later change emits Modified, even
// when the collection becomes empty. Removed is never emitted; the aggregate
// goes away together with its left tuple.
type CollectionAggregator struct {
	coll    *Collection
	created bool
}

// NewCollection creates an empty collection aggregator.
func NewCollection() *CollectionAggregator {
	return &CollectionAggregator{coll: &Collection{}}
}

// Add appends facts to the collection.
func (a *CollectionAggregator) Add(facts []Fact) ([]Result, error) {
	a.coll.facts = append(a.coll.facts, facts...)
	if !a.created {
		a.created = true
		return []Result{{Action: Added, Aggregate: a.coll}}, nil
	}
	return []Result{{Action: Modified, Aggregate: a.coll}}, nil
}

// Modify reports the collection as changed; items are read live from facts.
func (a *CollectionAggregator) Modify(facts []Fact) ([]Result, error) {
	return []Result{{Action: Modified, Aggregate: a.coll}}, nil
}

// Remove drops facts from the collection.
func (a *CollectionAggregator) Remove(facts []Fact) ([]Result, error) {
	for _, f := range facts {
		if i := slices.Index(a.coll.facts, f); i >= 0 {
			a.coll.facts = slices.Delete(a.coll.facts, i, i+1)
		}
	}
	return []Result{{Action: Modified, Aggregate: a.coll}}, nil
}

// Aggregates returns the single collection once created.
func (a *CollectionAggregator) Aggregates() []any {
	if !a.created {
		return nil
	}
	return []any{a.coll}
}
