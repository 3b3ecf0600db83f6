package rete

import "reflect"

// alphaParent is the fan-out shared by type and selection nodes. The
// selection map is only used while building, to share identical chains.
type alphaParent struct {
	selections map[string]*selectionNode
	children   []*selectionNode
	memory     *alphaMemoryNode
}

func (p *alphaParent) forwardAssert(ctx *ExecutionContext, f *Fact) error {
	if p.memory != nil {
		if err := p.memory.assertFact(ctx, f); err != nil {
			return err
		}
	}
	for _, c := range p.children {
		if err := c.assertFact(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (p *alphaParent) forwardUpdate(ctx *ExecutionContext, f *Fact) error {
	if p.memory != nil {
		if err := p.memory.updateFact(ctx, f); err != nil {
			return err
		}
	}
	for _, c := range p.children {
		if err := c.updateFact(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (p *alphaParent) forwardRetract(ctx *ExecutionContext, f *Fact) error {
	if p.memory != nil {
		if err := p.memory.retractFact(ctx, f); err != nil {
			return err
		}
	}
	for _, c := range p.children {
		if err := c.retractFact(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// rootNode fans every fact out to the type nodes.
type rootNode struct {
	nodeBase
	types []*typeNode
}

func (n *rootNode) assertFact(ctx *ExecutionContext, f *Fact) error {
	for _, t := range n.types {
		if t.accepts(f) {
			if err := t.forwardAssert(ctx, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *rootNode) updateFact(ctx *ExecutionContext, f *Fact) error {
	for _, t := range n.types {
		if t.accepts(f) {
			if err := t.forwardUpdate(ctx, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (n *rootNode) retractFact(ctx *ExecutionContext, f *Fact) error {
	for _, t := range n.types {
		if t.accepts(f) {
			if err := t.forwardRetract(ctx, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// typeNode accepts facts whose runtime type is assignable to typ.
type typeNode struct {
	nodeBase
	alphaParent
	typ reflect.Type
}

func (n *typeNode) accepts(f *Fact) bool {
	return f.typ != nil && f.typ.AssignableTo(n.typ)
}

// selectionNode evaluates one alpha condition.
type selectionNode struct {
	nodeBase
	alphaParent
	cond *boundExpr
}

func (n *selectionNode) assertFact(ctx *ExecutionContext, f *Fact) error {
	ok, err := n.cond.test(ctx, nil, f)
	if err != nil || !ok {
		return err
	}
	return n.forwardAssert(ctx, f)
}

// updateFact forwards an update while the condition holds and a retract
// once it stops holding; memories below ignore retracts of absent facts.
func (n *selectionNode) updateFact(ctx *ExecutionContext, f *Fact) error {
	ok, err := n.cond.test(ctx, nil, f)
	if err != nil {
		return err
	}
	if ok {
		return n.forwardUpdate(ctx, f)
	}
	return n.forwardRetract(ctx, f)
}

func (n *selectionNode) retractFact(ctx *ExecutionContext, f *Fact) error {
	return n.forwardRetract(ctx, f)
}

// alphaMemoryNode stores accepted facts and feeds the right input of beta nodes.
type alphaMemoryNode struct {
	nodeBase
	sinks []objectSink
}

func (n *alphaMemoryNode) assertFact(ctx *ExecutionContext, f *Fact) error {
	mem := ctx.WM.AlphaMemory(n.nid)
	if !mem.facts.add(f) {
		return n.propagateUpdate(ctx, f)
	}
	for _, s := range n.sinks {
		if err := s.assertFact(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// updateFact treats an update of a fact this memory does not hold as an assert.
func (n *alphaMemoryNode) updateFact(ctx *ExecutionContext, f *Fact) error {
	mem := ctx.WM.AlphaMemory(n.nid)
	if !mem.facts.has(f) {
		return n.assertFact(ctx, f)
	}
	return n.propagateUpdate(ctx, f)
}

func (n *alphaMemoryNode) propagateUpdate(ctx *ExecutionContext, f *Fact) error {
	for _, s := range n.sinks {
		if err := s.updateFact(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (n *alphaMemoryNode) retractFact(ctx *ExecutionContext, f *Fact) error {
	mem := ctx.WM.AlphaMemory(n.nid)
	if !mem.facts.remove(f) {
		return nil
	}
	var first error
	for _, s := range n.sinks {
		if err := s.retractFact(ctx, f); err != nil && first == nil {
			first = err
		}
	}
	return first
}
