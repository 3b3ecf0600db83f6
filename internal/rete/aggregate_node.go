package rete

import (
	"fmt"

	"github.com/roach88/rete/internal/aggregate"
)

// aggregateNode folds the right facts matching each left tuple into
// synthetic aggregate facts. One aggregator instance exists per left tuple,
// created lazily and kept in the tuple's state slot.
type aggregateNode struct {
	nodeBase
	name     string
	factory  aggregate.Factory
	left     *betaMemoryNode
	right    *alphaMemoryNode
	conds    []*boundExpr
	results  []*boundExpr // conditions on the aggregate fact itself
	exprs    map[string]*boundExpr
	exprKeys []string
	memory   *betaMemoryNode
}

type aggregateState struct {
	agg     aggregate.Aggregator
	matched *orderedSet[*Fact]
	outputs *orderedSet[*Fact]
}

func (n *aggregateNode) state(t *Tuple) *aggregateState {
	st, _ := t.getState(n.nid).(*aggregateState)
	return st
}

// selectors binds the aggregate expressions to one left tuple.
func (n *aggregateNode) selectors(t *Tuple) aggregate.Selectors {
	s := make(aggregate.Selectors, len(n.exprs))
	for _, name := range n.exprKeys {
		b := n.exprs[name]
		s[name] = func(af aggregate.Fact) (any, error) {
			f, ok := af.(*Fact)
			if !ok {
				return nil, fmt.Errorf("aggregate source %T is not a fact", af)
			}
			return b.evaluate(t, f)
		}
	}
	return s
}

func toAggregateFacts(facts []*Fact) []aggregate.Fact {
	out := make([]aggregate.Fact, len(facts))
	for i, f := range facts {
		out[i] = f
	}
	return out
}

// call runs one aggregator operation. A failing selector raises the
// condition failure event; when handled the change is skipped.
func (n *aggregateNode) call(ctx *ExecutionContext, op func([]aggregate.Fact) ([]aggregate.Result, error), facts []*Fact) ([]aggregate.Result, bool, error) {
	if len(facts) == 0 {
		return nil, true, nil
	}
	results, err := op(toAggregateFacts(facts))
	if err != nil {
		return nil, false, ctx.Events.RaiseFailure(EventConditionFailed, nil, err)
	}
	return results, true, nil
}

func (n *aggregateNode) matchLeft(ctx *ExecutionContext, t *Tuple) ([]*Fact, error) {
	var matched []*Fact
	for _, f := range ctx.WM.AlphaMemory(n.right.nid).Facts() {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

func (n *aggregateNode) assertTuple(ctx *ExecutionContext, t *Tuple) error {
	matched, err := n.matchLeft(ctx, t)
	if err != nil {
		return err
	}
	agg, err := n.factory.Create(n.selectors(t))
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", n.name, err)
	}
	st := &aggregateState{agg: agg, matched: newOrderedSet[*Fact](), outputs: newOrderedSet[*Fact]()}
	t.setState(n.nid, st)

	// The initial add runs even with no matches so aggregates such as an
	// empty collection exist from the start.
	results, err := agg.Add(toAggregateFacts(matched))
	if err != nil {
		return ctx.Events.RaiseFailure(EventConditionFailed, nil, err)
	}
	for _, f := range matched {
		st.matched.add(f)
	}
	_, err = n.apply(ctx, t, st, results)
	return err
}

func (n *aggregateNode) updateTuple(ctx *ExecutionContext, t *Tuple) error {
	st := n.state(t)
	if st == nil {
		return n.assertTuple(ctx, t)
	}
	matched, err := n.matchLeft(ctx, t)
	if err != nil {
		return err
	}
	now := newOrderedSet[*Fact]()
	var added, kept []*Fact
	for _, f := range matched {
		now.add(f)
		if st.matched.has(f) {
			kept = append(kept, f)
		} else {
			added = append(added, f)
		}
	}
	var removed []*Fact
	for _, f := range st.matched.values() {
		if !now.has(f) {
			removed = append(removed, f)
		}
	}

	touched := make(map[*Fact]bool)
	for _, step := range []struct {
		op    func([]aggregate.Fact) ([]aggregate.Result, error)
		facts []*Fact
		track func(*Fact)
	}{
		{st.agg.Remove, removed, func(f *Fact) { st.matched.remove(f) }},
		{st.agg.Modify, kept, func(*Fact) {}},
		{st.agg.Add, added, func(f *Fact) { st.matched.add(f) }},
	} {
		results, ok, err := n.call(ctx, step.op, step.facts)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, f := range step.facts {
			step.track(f)
		}
		changed, err := n.apply(ctx, t, st, results)
		if err != nil {
			return err
		}
		for _, f := range changed {
			touched[f] = true
		}
	}

	// Aggregates the change did not affect still sit in tuples holding the
	// updated left facts.
	for _, f := range st.outputs.values() {
		if touched[f] {
			continue
		}
		if err := n.emit(ctx, t, f); err != nil {
			return err
		}
	}
	return nil
}

// emit passes the aggregate fact f of t downstream while it satisfies the
// result conditions and retracts its child once it stops doing so.
func (n *aggregateNode) emit(ctx *ExecutionContext, t *Tuple, f *Fact) error {
	ok, err := testAll(ctx, n.results, t, f)
	if err != nil {
		return err
	}
	if !ok {
		return n.memory.retractChild(ctx, t, f)
	}
	return n.memory.updateChild(ctx, t, f)
}

func (n *aggregateNode) retractTuple(ctx *ExecutionContext, t *Tuple) error {
	err := n.memory.retractChildren(ctx, t)
	if st := n.state(t); st != nil {
		for _, f := range st.outputs.values() {
			if key, ok := f.identity.(internalKey); ok {
				ctx.WM.removeInternalFact(key)
			}
		}
	}
	t.clearState(n.nid)
	return err
}

func (n *aggregateNode) assertFact(ctx *ExecutionContext, f *Fact) error {
	var matched []*Tuple
	for _, t := range ctx.WM.BetaMemory(n.left.nid).Tuples() {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return err
		}
		if ok {
			matched = append(matched, t)
		}
	}
	for _, t := range matched {
		st := n.state(t)
		if st == nil || st.matched.has(f) {
			continue
		}
		results, ok, err := n.call(ctx, st.agg.Add, []*Fact{f})
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		st.matched.add(f)
		if _, err := n.apply(ctx, t, st, results); err != nil {
			return err
		}
	}
	return nil
}

func (n *aggregateNode) updateFact(ctx *ExecutionContext, f *Fact) error {
	tuples := ctx.WM.BetaMemory(n.left.nid).Tuples()
	matches := make([]bool, len(tuples))
	for i, t := range tuples {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return err
		}
		matches[i] = ok
	}
	for i, t := range tuples {
		st := n.state(t)
		if st == nil {
			continue
		}
		was := st.matched.has(f)
		var (
			op    func([]aggregate.Fact) ([]aggregate.Result, error)
			track func()
		)
		switch {
		case was && matches[i]:
			op, track = st.agg.Modify, func() {}
		case was:
			op, track = st.agg.Remove, func() { st.matched.remove(f) }
		case matches[i]:
			op, track = st.agg.Add, func() { st.matched.add(f) }
		default:
			continue
		}
		results, ok, err := n.call(ctx, op, []*Fact{f})
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		track()
		if _, err := n.apply(ctx, t, st, results); err != nil {
			return err
		}
	}
	return nil
}

func (n *aggregateNode) retractFact(ctx *ExecutionContext, f *Fact) error {
	var first error
	for _, t := range ctx.WM.BetaMemory(n.left.nid).Tuples() {
		st := n.state(t)
		if st == nil || !st.matched.has(f) {
			continue
		}
		results, ok, err := n.call(ctx, st.agg.Remove, []*Fact{f})
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		if !ok {
			continue
		}
		st.matched.remove(f)
		if _, err := n.apply(ctx, t, st, results); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// apply turns each aggregation result into exactly one assert, update or
// retract of a synthetic fact. It returns the facts it touched.
func (n *aggregateNode) apply(ctx *ExecutionContext, t *Tuple, st *aggregateState, results []aggregate.Result) ([]*Fact, error) {
	var touched []*Fact
	for _, r := range results {
		key := internalKey{node: n.nid, tuple: t, key: aggregate.ValueKey(r.Aggregate)}
		switch r.Action {
		case aggregate.Added:
			if f := ctx.WM.internalFact(key); f != nil {
				f.object = r.Aggregate
				touched = append(touched, f)
				if err := n.emit(ctx, t, f); err != nil {
					return touched, err
				}
				continue
			}
			f := ctx.WM.addInternalFact(key, r.Aggregate)
			st.outputs.add(f)
			touched = append(touched, f)
			if err := n.emit(ctx, t, f); err != nil {
				return touched, err
			}

		case aggregate.Modified:
			lookup := key
			if r.Previous != nil {
				lookup.key = aggregate.ValueKey(r.Previous)
			}
			f := ctx.WM.internalFact(lookup)
			if f == nil {
				f = ctx.WM.addInternalFact(key, r.Aggregate)
				st.outputs.add(f)
				touched = append(touched, f)
				if err := n.emit(ctx, t, f); err != nil {
					return touched, err
				}
				continue
			}
			if lookup != key {
				ctx.WM.rekeyInternalFact(lookup, key, f)
			}
			f.object = r.Aggregate
			touched = append(touched, f)
			if err := n.emit(ctx, t, f); err != nil {
				return touched, err
			}

		case aggregate.Removed:
			f := ctx.WM.internalFact(key)
			if f == nil {
				continue
			}
			touched = append(touched, f)
			err := n.memory.retractChild(ctx, t, f)
			ctx.WM.removeInternalFact(key)
			st.outputs.remove(f)
			if err != nil {
				return touched, err
			}
		}
	}
	return touched, nil
}
