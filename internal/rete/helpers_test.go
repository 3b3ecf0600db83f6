package rete

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rete/internal/ir"
)

type order struct {
	ID       string
	Customer string
	Total    int
	Rush     bool
}

type customer struct {
	Name string
	VIP  bool
}

type discount struct {
	Order   string
	Percent int
}

// factA and factB model the canonical join scenario: A.X == B.Join.X.
type factA struct{ X int }

type factB struct{ Join *factA }

// recordingSink is an ActivationSink that keeps the current activations.
type recordingSink struct {
	active   *orderedSet[*Activation]
	added    int
	modified int
	removed  int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{active: newOrderedSet[*Activation]()}
}

func (s *recordingSink) Add(a *Activation) error {
	s.added++
	s.active.add(a)
	return nil
}

func (s *recordingSink) Modify(a *Activation) error {
	s.modified++
	s.active.add(a)
	return nil
}

func (s *recordingSink) Remove(a *Activation) error {
	s.removed++
	s.active.remove(a)
	return nil
}

func (s *recordingSink) rules() []string {
	var out []string
	for _, a := range s.active.values() {
		out = append(out, a.Rule().Name())
	}
	return out
}

type harness struct {
	t    *testing.T
	net  *Network
	ctx  *ExecutionContext
	sink *recordingSink
}

func newHarness(t *testing.T, rules ...ir.Rule) *harness {
	t.Helper()
	net, err := Build(ir.RuleSet{Name: t.Name(), Rules: rules})
	require.NoError(t, err)
	return newHarnessFor(t, net)
}

func newHarnessFor(t *testing.T, net *Network) *harness {
	t.Helper()
	sink := newRecordingSink()
	ctx := NewExecutionContext(sink, nil, nil)
	require.NoError(t, net.Activate(ctx))
	return &harness{t: t, net: net, ctx: ctx, sink: sink}
}

func (h *harness) insert(obj any) *Fact {
	h.t.Helper()
	f, err := h.ctx.WM.NewFact(obj)
	require.NoError(h.t, err)
	require.NoError(h.t, h.ctx.WM.AddFact(f))
	require.NoError(h.t, h.net.PropagateAssert(h.ctx, f))
	return f
}

func (h *harness) update(obj any) {
	h.t.Helper()
	f, err := h.ctx.WM.UpdateFact(obj)
	require.NoError(h.t, err)
	require.NoError(h.t, h.net.PropagateUpdate(h.ctx, f))
}

func (h *harness) retract(obj any) {
	h.t.Helper()
	f, err := h.ctx.WM.GetFact(obj)
	require.NoError(h.t, err)
	require.NoError(h.t, h.net.PropagateRetract(h.ctx, f))
	h.ctx.WM.RemoveFact(f)
}

func noop() ir.Action {
	return ir.Do("noop", func(ir.Context) error { return nil })
}

func joinRule() ir.Rule {
	return ir.Rule{
		Name: "a-b",
		Patterns: []ir.Pattern{
			ir.Match[*factA]("a"),
			ir.Match[*factB]("b").Where(
				ir.Join2("a.X == b.Join.X", "a", "b", func(a *factA, b *factB) bool {
					return b.Join != nil && a.X == b.Join.X
				}),
			),
		},
		Actions: []ir.Action{noop()},
	}
}
