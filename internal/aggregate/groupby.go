package aggregate

import "slices"

// Group is the aggregate produced by GroupBy: the elements of all source
// facts sharing one key.
type Group struct {
	key     any
	members []groupMember
}

type groupMember struct {
	fact  Fact
	value any
}

// Key returns the group key. The default group (nil key) returns nil.
func (g *Group) Key() any {
	return g.key
}

// Len returns the number of elements in the group.
func (g *Group) Len() int {
	return len(g.members)
}

// Items returns the group elements in the order their facts joined.
func (g *Group) Items() []any {
	out := make([]any, len(g.members))
	for i, m := range g.members {
		out[i] = m.value
	}
	return out
}

// GroupItems returns the group elements converted to T, skipping values of
// other types.
func GroupItems[T any](g *Group) []T {
	out := make([]T, 0, g.Len())
	for _, m := range g.members {
		if v, ok := m.value.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func (g *Group) indexOf(f Fact) int {
	return slices.IndexFunc(g.members, func(m groupMember) bool { return m.fact == f })
}

// GroupByAggregator implements GroupBy. A group exists exactly while at
// least one source fact maps to its key.
type GroupByAggregator struct {
	keySelector     Selector
	elementSelector Selector
	groups          map[any]*Group
	factKeys        map[Fact]any
	order           keyOrder
}

// NewGroupBy creates a group-by aggregator.
func NewGroupBy(keySelector, elementSelector Selector) *GroupByAggregator {
	return &GroupByAggregator{
		keySelector:     keySelector,
		elementSelector: elementSelector,
		groups:          make(map[any]*Group),
		factKeys:        make(map[Fact]any),
	}
}

type keyed struct {
	key   any
	value any
}

func (a *GroupByAggregator) selectAll(facts []Fact) ([]keyed, error) {
	out := make([]keyed, len(facts))
	for i, f := range facts {
		k, err := a.keySelector(f)
		if err != nil {
			return nil, err
		}
		v, err := a.elementSelector(f)
		if err != nil {
			return nil, err
		}
		out[i] = keyed{key: k, value: v}
	}
	return out, nil
}

// Add places each fact into the group for its key.
func (a *GroupByAggregator) Add(facts []Fact) ([]Result, error) {
	selected, err := a.selectAll(facts)
	if err != nil {
		return nil, err
	}
	var results resultList
	for i, f := range facts {
		a.insert(f, selected[i], &results)
	}
	return results.list(), nil
}

// Modify re-evaluates key and element. A changed key moves the fact from
// its old group to the new one.
func (a *GroupByAggregator) Modify(facts []Fact) ([]Result, error) {
	selected, err := a.selectAll(facts)
	if err != nil {
		return nil, err
	}
	var results resultList
	for i, f := range facts {
		oldKey, known := a.factKeys[f]
		if !known {
			a.insert(f, selected[i], &results)
			continue
		}
		if oldKey == ValueKey(selected[i].key) {
			g := a.groups[oldKey]
			if j := g.indexOf(f); j >= 0 {
				g.members[j].value = selected[i].value
			}
			results.add(Modified, g, nil)
			continue
		}
		a.delete(f, &results)
		a.insert(f, selected[i], &results)
	}
	return results.list(), nil
}

// Remove takes facts out of their groups, dropping groups that become empty.
func (a *GroupByAggregator) Remove(facts []Fact) ([]Result, error) {
	var results resultList
	for _, f := range facts {
		if _, known := a.factKeys[f]; known {
			a.delete(f, &results)
		}
	}
	return results.list(), nil
}

// Aggregates returns the current groups in key creation order.
func (a *GroupByAggregator) Aggregates() []any {
	out := make([]any, 0, len(a.order.keys))
	for _, k := range a.order.keys {
		out = append(out, a.groups[k])
	}
	return out
}

func (a *GroupByAggregator) insert(f Fact, kv keyed, results *resultList) {
	k := ValueKey(kv.key)
	a.factKeys[f] = k
	g, ok := a.groups[k]
	if !ok {
		g = &Group{key: kv.key}
		a.groups[k] = g
		a.order.add(k)
		g.members = append(g.members, groupMember{fact: f, value: kv.value})
		results.add(Added, g, nil)
		return
	}
	g.members = append(g.members, groupMember{fact: f, value: kv.value})
	results.add(Modified, g, nil)
}

func (a *GroupByAggregator) delete(f Fact, results *resultList) {
	k := a.factKeys[f]
	delete(a.factKeys, f)
	g := a.groups[k]
	if g == nil {
		return
	}
	if j := g.indexOf(f); j >= 0 {
		g.members = slices.Delete(g.members, j, j+1)
	}
	if len(g.members) > 0 {
		results.add(Modified, g, nil)
		return
	}
	delete(a.groups, k)
	a.order.remove(k)
	results.add(Removed, g, nil)
}
