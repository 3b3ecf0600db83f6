package rete

// ruleNode is the terminal node of one rule. It keeps the tuple's
// Activation in the tuple state slot so updates reuse it.
type ruleNode struct {
	nodeBase
	rule *Rule
}

func (n *ruleNode) activation(t *Tuple) *Activation {
	a, _ := t.getState(n.nid).(*Activation)
	return a
}

func (n *ruleNode) assertTuple(ctx *ExecutionContext, t *Tuple) error {
	if n.activation(t) != nil {
		return n.updateTuple(ctx, t)
	}
	a := &Activation{rule: n.rule, tuple: t}
	t.setState(n.nid, a)
	if err := ctx.Agenda.Add(a); err != nil {
		t.clearState(n.nid)
		return err
	}
	ctx.Logger.Debug("activation created", "rule", n.rule.Name(), "tuple_len", t.Len())
	ctx.Events.Publish(&Event{Kind: EventActivationCreated, Activation: a})
	return nil
}

func (n *ruleNode) updateTuple(ctx *ExecutionContext, t *Tuple) error {
	a := n.activation(t)
	if a == nil {
		return n.assertTuple(ctx, t)
	}
	if err := ctx.Agenda.Modify(a); err != nil {
		return err
	}
	ctx.Events.Publish(&Event{Kind: EventActivationUpdated, Activation: a})
	return nil
}

func (n *ruleNode) retractTuple(ctx *ExecutionContext, t *Tuple) error {
	a := n.activation(t)
	if a == nil {
		return nil
	}
	t.clearState(n.nid)
	if err := ctx.Agenda.Remove(a); err != nil {
		return err
	}
	ctx.Logger.Debug("activation deleted", "rule", n.rule.Name())
	ctx.Events.Publish(&Event{Kind: EventActivationDeleted, Activation: a})
	return nil
}
