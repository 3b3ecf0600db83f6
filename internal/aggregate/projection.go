package aggregate

// ProjectionAggregator implements Project: one aggregate per distinct
// projected value. Values are reference counted so a value stays materialized
// while any source fact still projects to it.
type ProjectionAggregator struct {
	selector Selector
	values   map[Fact]any
	counts   map[any]int
	current  map[any]any
	order    keyOrder
}

// NewProjection creates a projection aggregator over selector.
func NewProjection(selector Selector) *ProjectionAggregator {
	return &ProjectionAggregator{
		selector: selector,
		values:   make(map[Fact]any),
		counts:   make(map[any]int),
		current:  make(map[any]any),
	}
}

func (a *ProjectionAggregator) project(facts []Fact) ([]any, error) {
	out := make([]any, len(facts))
	for i, f := range facts {
		v, err := a.selector(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Add projects facts and emits Added for values seen for the first time.
func (a *ProjectionAggregator) Add(facts []Fact) ([]Result, error) {
	values, err := a.project(facts)
	if err != nil {
		return nil, err
	}
	var results resultList
	for i, f := range facts {
		a.values[f] = values[i]
		a.retain(values[i], &results)
	}
	return results.list(), nil
}

// Modify re-projects facts. A changed value retracts the old value and
// adds the new one.
func (a *ProjectionAggregator) Modify(facts []Fact) ([]Result, error) {
	values, err := a.project(facts)
	if err != nil {
		return nil, err
	}
	var results resultList
	for i, f := range facts {
		next := values[i]
		prev, known := a.values[f]
		a.values[f] = next
		if !known {
			a.retain(next, &results)
			continue
		}
		if ValueKey(prev) == ValueKey(next) {
			a.current[ValueKey(next)] = next
			results.add(Modified, next, prev)
			continue
		}
		a.release(prev, &results)
		a.retain(next, &results)
	}
	return results.list(), nil
}

// Remove releases the values of facts.
func (a *ProjectionAggregator) Remove(facts []Fact) ([]Result, error) {
	var results resultList
	for _, f := range facts {
		prev, known := a.values[f]
		if !known {
			continue
		}
		delete(a.values, f)
		a.release(prev, &results)
	}
	return results.list(), nil
}

// Aggregates returns the distinct projected values.
func (a *ProjectionAggregator) Aggregates() []any {
	out := make([]any, 0, len(a.order.keys))
	for _, k := range a.order.keys {
		out = append(out, a.current[k])
	}
	return out
}

func (a *ProjectionAggregator) retain(v any, results *resultList) {
	k := ValueKey(v)
	a.counts[k]++
	if a.counts[k] == 1 {
		a.current[k] = v
		a.order.add(k)
		results.add(Added, v, nil)
	}
}

func (a *ProjectionAggregator) release(v any, results *resultList) {
	k := ValueKey(v)
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
