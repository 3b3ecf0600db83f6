package rete

// betaMemoryNode owns the tuples produced by one beta node and fans them
// out to the next node (or the rule node).
type betaMemoryNode struct {
	nodeBase
	sinks []tupleSink
}

func (n *betaMemoryNode) propagateAssert(ctx *ExecutionContext, t *Tuple) error {
	for _, s := range n.sinks {
		if err := s.assertTuple(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// assertChild creates the child of parent extended with f. A child that
// already exists is left alone: a fact reaching both inputs of a join during
// one propagation would otherwise be joined twice.
func (n *betaMemoryNode) assertChild(ctx *ExecutionContext, parent *Tuple, f *Fact) error {
	mem := ctx.WM.BetaMemory(n.nid)
	if mem.child(parent, f) != nil {
		return nil
	}
	t := newChildTuple(parent, f, n.nid)
	mem.add(t)
	return n.propagateAssert(ctx, t)
}

// updateChild propagates an update of the child of parent extended with f,
// creating the child if it does not exist.
func (n *betaMemoryNode) updateChild(ctx *ExecutionContext, parent *Tuple, f *Fact) error {
	mem := ctx.WM.BetaMemory(n.nid)
	t := mem.child(parent, f)
	if t == nil {
		return n.assertChild(ctx, parent, f)
	}
	for _, s := range n.sinks {
		if err := s.updateTuple(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// retractChild retracts the child of parent extended with f, if present.
// Sinks see the retraction before the tuple leaves the memory so they can
// still read its state.
func (n *betaMemoryNode) retractChild(ctx *ExecutionContext, parent *Tuple, f *Fact) error {
	mem := ctx.WM.BetaMemory(n.nid)
	t := mem.child(parent, f)
	if t == nil {
		return nil
	}
	var first error
	for _, s := range n.sinks {
		if err := s.retractTuple(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	mem.remove(t)
	t.detach()
	return first
}

// retractChildren retracts every child this memory created for parent.
func (n *betaMemoryNode) retractChildren(ctx *ExecutionContext, parent *Tuple) error {
	var first error
	for _, c := range parent.Children() {
		if c.node != n.nid {
			continue
		}
		if err := n.retractChild(ctx, parent, c.fact); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// joinNode joins left tuples with right facts on its join conditions.
type joinNode struct {
	nodeBase
	left   *betaMemoryNode
	right  *alphaMemoryNode
	conds  []*boundExpr
	memory *betaMemoryNode
}

func (n *joinNode) rightFacts(ctx *ExecutionContext) []*Fact {
	return ctx.WM.AlphaMemory(n.right.nid).Facts()
}

func (n *joinNode) leftTuples(ctx *ExecutionContext) []*Tuple {
	return ctx.WM.BetaMemory(n.left.nid).Tuples()
}

func (n *joinNode) assertTuple(ctx *ExecutionContext, t *Tuple) error {
	var matched []*Fact
	for _, f := range n.rightFacts(ctx) {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return err
		}
		if ok {
			matched = append(matched, f)
		}
	}
	for _, f := range matched {
		if err := n.memory.assertChild(ctx, t, f); err != nil {
			return err
		}
	}
	return nil
}

func (n *joinNode) updateTuple(ctx *ExecutionContext, t *Tuple) error {
	facts := n.rightFacts(ctx)
	matches := make([]bool, len(facts))
	for i, f := range facts {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return err
		}
		matches[i] = ok
	}
	for i, f := range facts {
		var err error
		if matches[i] {
			err = n.memory.updateChild(ctx, t, f)
		} else {
			err = n.memory.retractChild(ctx, t, f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *joinNode) retractTuple(ctx *ExecutionContext, t *Tuple) error {
	return n.memory.retractChildren(ctx, t)
}

func (n *joinNode) assertFact(ctx *ExecutionContext, f *Fact) error {
	var matched []*Tuple
	for _, t := range n.leftTuples(ctx) {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return err
		}
		if ok {
			matched = append(matched, t)
		}
	}
	for _, t := range matched {
		if err := n.memory.assertChild(ctx, t, f); err != nil {
			return err
		}
	}
	return nil
}

func (n *joinNode) updateFact(ctx *ExecutionContext, f *Fact) error {
	tuples := n.leftTuples(ctx)
	matches := make([]bool, len(tuples))
	for i, t := range tuples {
		ok, err := testAll(ctx, n.conds, t, f)
		if err != nil {
			return err
		}
		matches[i] = ok
	}
	for i, t := range tuples {
		var err error
		if matches[i] {
			err = n.memory.updateChild(ctx, t, f)
		} else {
			err = n.memory.retractChild(ctx, t, f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *joinNode) retractFact(ctx *ExecutionContext, f *Fact) error {
	var first error
	for _, t := range n.leftTuples(ctx) {
		if err := n.memory.retractChild(ctx, t, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}
