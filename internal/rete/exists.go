package rete

// existsNode implements both negative (not) and positive (exists)
// existential joins. It keeps, per left tuple, the set of right facts that
// currently match. Only the transition between zero and one match
// propagates: not passes the left tuple while the set is empty, exists while
// it is non-empty. The propagated child carries no fact.
type existsNode struct {
	nodeBase
	negated bool
	left    *betaMemoryNode
	right   *alphaMemoryNode
	conds   []*boundExpr
	memory  *betaMemoryNode
}

type existsState struct {
	matched *orderedSet[*Fact]
}

func (n *existsNode) holds(count int) bool {
	if n.negated {
		return count == 0
	}
	return count > 0
}

func (n *existsNode) state(t *Tuple) *existsState {
	st, _ := t.getState(n.nid).(*existsState)
	return st
}

func (n *existsNode) match(ctx *ExecutionContext, t *Tuple) (*orderedSet[*Fact], error) {
	matched := newOrderedSet[*Fact]()
	for _, f := range ctx.WM.AlphaMemory(n.right.nid).Facts() {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return nil, err
		}
		if ok {
			matched.add(f)
		}
	}
	return matched, nil
}

func (n *existsNode) assertTuple(ctx *ExecutionContext, t *Tuple) error {
	matched, err := n.match(ctx, t)
	if err != nil {
		return err
	}
	t.setState(n.nid, &existsState{matched: matched})
	if n.holds(matched.len()) {
		return n.memory.assertChild(ctx, t, nil)
	}
	return nil
}

// updateTuple recounts matches, since join conditions may read the left facts.
func (n *existsNode) updateTuple(ctx *ExecutionContext, t *Tuple) error {
	st := n.state(t)
	if st == nil {
		return n.assertTuple(ctx, t)
	}
	matched, err := n.match(ctx, t)
	if err != nil {
		return err
	}
	before, after := n.holds(st.matched.len()), n.holds(matched.len())
	st.matched = matched
	switch {
	case before && after:
		return n.memory.updateChild(ctx, t, nil)
	case after:
		return n.memory.assertChild(ctx, t, nil)
	case before:
		return n.memory.retractChild(ctx, t, nil)
	}
	return nil
}

func (n *existsNode) retractTuple(ctx *ExecutionContext, t *Tuple) error {
	err := n.memory.retractChildren(ctx, t)
	t.clearState(n.nid)
	return err
}

// transition propagates the left tuple when its match count crossed zero.
func (n *existsNode) transition(ctx *ExecutionContext, t *Tuple, count int) error {
	if n.holds(count) {
		return n.memory.assertChild(ctx, t, nil)
	}
	return n.memory.retractChild(ctx, t, nil)
}

func (n *existsNode) assertFact(ctx *ExecutionContext, f *Fact) error {
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
		if st == nil || !st.matched.add(f) || st.matched.len() != 1 {
			continue
		}
		if err := n.transition(ctx, t, 1); err != nil {
			return err
		}
	}
	return nil
}

func (n *existsNode) updateFact(ctx *ExecutionContext, f *Fact) error {
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
		switch {
		case was && !matches[i]:
			st.matched.remove(f)
			if st.matched.len() == 0 {
				if err := n.transition(ctx, t, 0); err != nil {
					return err
				}
			}
		case !was && matches[i]:
			st.matched.add(f)
			if st.matched.len() == 1 {
				if err := n.transition(ctx, t, 1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (n *existsNode) retractFact(ctx *ExecutionContext, f *Fact) error {
	var first error
	for _, t := range ctx.WM.BetaMemory(n.left.nid).Tuples() {
		st := n.state(t)
		if st == nil || !st.matched.remove(f) || st.matched.len() != 0 {
			continue
		}
		if err := n.transition(ctx, t, 0); err != nil && first == nil {
			first = err
		}
	}
	return first
}
