package rete

import (
	"fmt"

	"github.com/roach88/rete/internal/ir"
)

// ActivationState tracks an activation through the agenda.
type ActivationState int

const (
	// StatePending means the activation exists but is not queued.
	StatePending ActivationState = iota
	// StateActive means the activation is on the agenda.
	StateActive
	// StateFired means the activation has fired and is not queued.
	StateFired
	// StateRemoved means the underlying tuple was retracted or the agenda
	// was cleared.
	StateRemoved
)

// String returns the state name.
func (s ActivationState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateFired:
		return "fired"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Activation is a complete match of one rule.
//
// The terminal node reuses a single Activation per (rule, tuple) for the
// tuple's lifetime, so pointer equality is (rule, tuple) equality.
type Activation struct {
	rule  *Rule
	tuple *Tuple

	// State is maintained by the agenda.
	State ActivationState

	// Priority is the salience computed when the activation was last queued.
	Priority int

	// Seq is the insertion counter value assigned when last queued.
	Seq int64
}

// Rule returns the matched rule.
func (a *Activation) Rule() *Rule {
	return a.rule
}

// Tuple returns the matched tuple.
func (a *Activation) Tuple() *Tuple {
	return a.tuple
}

// Get returns the object bound to a declaration.
func (a *Activation) Get(name string) (any, bool) {
	pos, ok := a.rule.declarations[name]
	if !ok {
		return nil, false
	}
	f := a.tuple.At(pos)
	if f == nil {
		return nil, false
	}
	return f.object, true
}

// Objects returns the matched objects in pattern order, skipping
// not/exists placeholders.
func (a *Activation) Objects() []any {
	all := a.tuple.Objects()
	out := make([]any, 0, len(all))
	for _, o := range all {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Facts returns the matched facts from newest to oldest.
func (a *Activation) Facts() []*Fact {
	return a.tuple.Facts()
}

// String returns a short description for logs.
func (a *Activation) String() string {
	return fmt.Sprintf("%s%v", a.rule.Name(), a.Objects())
}

// RuleFilter is a compiled per-rule agenda filter.
type RuleFilter struct {
	Kind        ir.FilterKind
	Expressions []*Expression
}

// Rule is the compiled form of one rule definition.
type Rule struct {
	def          *ir.Rule
	index        int
	declarations map[string]int
	priority     *boundExpr
	filters      []RuleFilter
}

// Name returns the rule name.
func (r *Rule) Name() string {
	return r.def.Name
}

// Definition returns the rule definition. It must not be modified.
func (r *Rule) Definition() *ir.Rule {
	return r.def
}

// Index returns the rule's position in the rule set.
func (r *Rule) Index() int {
	return r.index
}

// Repeatable reports whether the rule may refire for an updated tuple.
func (r *Rule) Repeatable() bool {
	return r.def.Repeatability == ir.Repeatable
}

// Declaration returns the tuple position of a named declaration.
func (r *Rule) Declaration(name string) (int, bool) {
	pos, ok := r.declarations[name]
	return pos, ok
}

// Filters returns the rule's agenda filters.
func (r *Rule) Filters() []RuleFilter {
	return r.filters
}

// PriorityOf returns the activation's priority: the dynamic priority
// expression if the rule has one, else the static priority.
func (r *Rule) PriorityOf(a *Activation) (int, error) {
	if r.priority == nil {
		return r.def.Priority, nil
	}
	v, err := r.priority.evaluate(a.tuple, nil)
	if err != nil {
		return 0, err
	}
	p, ok := v.(int)
	if !ok {
		return 0, r.priority.failure(a.tuple.Objects(), fmt.Errorf("returned %T, want int", v))
	}
	return p, nil
}
