package rete

import "log/slog"

// ActivationSink receives activation changes from rule nodes.
// The agenda implements it.
type ActivationSink interface {
	Add(a *Activation) error
	Modify(a *Activation) error
	Remove(a *Activation) error
}

// ExecutionContext carries the per-session state a propagation touches.
type ExecutionContext struct {
	WM     *WorkingMemory
	Agenda ActivationSink
	Events *Events
	Logger *slog.Logger
}

// NewExecutionContext creates a context with a fresh working memory.
func NewExecutionContext(agenda ActivationSink, events *Events, logger *slog.Logger) *ExecutionContext {
	if events == nil {
		events = NewEvents()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionContext{
		WM:     NewWorkingMemory(),
		Agenda: agenda,
		Events: events,
		Logger: logger,
	}
}

// objectSink receives facts at the right input of a node.
type objectSink interface {
	assertFact(ctx *ExecutionContext, f *Fact) error
	updateFact(ctx *ExecutionContext, f *Fact) error
	retractFact(ctx *ExecutionContext, f *Fact) error
}

// tupleSink receives tuples at the left input of a node.
type tupleSink interface {
	assertTuple(ctx *ExecutionContext, t *Tuple) error
	updateTuple(ctx *ExecutionContext, t *Tuple) error
	retractTuple(ctx *ExecutionContext, t *Tuple) error
}

// nodeBase carries the identity shared by every node kind.
type nodeBase struct {
	nid int
}

// Network is a compiled, immutable rule network.
//
// A Network is safe for concurrent use by multiple sessions. All mutable
// state lives in the ExecutionContext of each call.
type Network struct {
	name       string
	hash       string
	root       *rootNode
	rootMemory *betaMemoryNode
	rules      []*Rule
	byName     map[string]*Rule
	schema     Schema
}

// Name returns the rule set name.
func (n *Network) Name() string {
	return n.name
}

// Hash returns the rule set version hash.
func (n *Network) Hash() string {
	return n.hash
}

// Rules returns the compiled rules in declaration order.
func (n *Network) Rules() []*Rule {
	return append([]*Rule(nil), n.rules...)
}

// Rule returns the compiled rule with the given name.
func (n *Network) Rule(name string) (*Rule, bool) {
	r, ok := n.byName[name]
	return r, ok
}

// Activate seeds the session's root beta memory with the root tuple.
// It must be called once per session before any fact is asserted; later
// calls are no-ops.
func (n *Network) Activate(ctx *ExecutionContext) error {
	mem := ctx.WM.BetaMemory(n.rootMemory.nid)
	if mem.Len() > 0 {
		return nil
	}
	root := newRootTuple(n.rootMemory.nid)
	mem.add(root)
	ctx.Logger.Debug("network activated", "rule_set", n.name)
	return n.rootMemory.propagateAssert(ctx, root)
}

// PropagateAssert sends a newly inserted fact through the network.
func (n *Network) PropagateAssert(ctx *ExecutionContext, f *Fact) error {
	return n.root.assertFact(ctx, f)
}

// PropagateUpdate sends an updated fact through the network.
func (n *Network) PropagateUpdate(ctx *ExecutionContext, f *Fact) error {
	return n.root.updateFact(ctx, f)
}

// PropagateRetract removes a fact from every node memory.
func (n *Network) PropagateRetract(ctx *ExecutionContext, f *Fact) error {
	return n.root.retractFact(ctx, f)
}
