package agenda

import (
	"fmt"
	"reflect"

	"github.com/roach88/rete/internal/ir"
	"github.com/roach88/rete/internal/rete"
)

// Filter admits or rejects the head activation when it is popped.
type Filter interface {
	Accept(a *rete.Activation) (bool, error)
}

// Selector is implemented by stateful filters that record state once an
// accepted activation is actually selected for firing.
type Selector interface {
	Select(a *rete.Activation)
}

// Forgetter is implemented by filters that keep per-activation state.
// Forget is called when the activation is removed from the agenda for good.
type Forgetter interface {
	Forget(a *rete.Activation)
}

// Predicate is a boolean test over an activation.
type Predicate func(a *rete.Activation) (bool, error)

// KeyFunc projects an activation to a comparable key.
type KeyFunc func(a *rete.Activation) (any, error)

// PredicateFilter accepts an activation only if every predicate holds.
type PredicateFilter struct {
	predicates []Predicate
}

// NewPredicateFilter creates a stateless predicate filter.
func NewPredicateFilter(predicates ...Predicate) *PredicateFilter {
	return &PredicateFilter{predicates: predicates}
}

// Accept implements Filter.
func (f *PredicateFilter) Accept(a *rete.Activation) (bool, error) {
	for _, p := range f.predicates {
		ok, err := p(a)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// KeyChangeFilter accepts an activation the first time it is seen, and
// afterwards only if its projected key differs from the key recorded when
// the activation was last selected.
//
// The filter holds per-activation state; do not share one instance between
// sessions.
type KeyChangeFilter struct {
	keys    []KeyFunc
	pending map[*rete.Activation][]any
	last    map[*rete.Activation][]any
}

// NewKeyChangeFilter creates a key-change filter. The key is the tuple of
// all projections.
func NewKeyChangeFilter(keys ...KeyFunc) *KeyChangeFilter {
	return &KeyChangeFilter{
		keys:    keys,
		pending: make(map[*rete.Activation][]any),
		last:    make(map[*rete.Activation][]any),
	}
}

// Accept implements Filter. The computed key is kept until Select.
func (f *KeyChangeFilter) Accept(a *rete.Activation) (bool, error) {
	key := make([]any, len(f.keys))
	for i, k := range f.keys {
		v, err := k(a)
		if err != nil {
			return false, err
		}
		key[i] = v
	}
	prev, seen := f.last[a]
	if seen && reflect.DeepEqual(prev, key) {
		delete(f.pending, a)
		return false, nil
	}
	f.pending[a] = key
	return true, nil
}

// Select implements Selector.
func (f *KeyChangeFilter) Select(a *rete.Activation) {
	if key, ok := f.pending[a]; ok {
		f.last[a] = key
		delete(f.pending, a)
	}
}

// Forget implements Forgetter.
func (f *KeyChangeFilter) Forget(a *rete.Activation) {
	delete(f.pending, a)
	delete(f.last, a)
}

// ExpressionPredicate adapts a compiled rule expression to a Predicate.
// The expression must return a bool.
func ExpressionPredicate(e *rete.Expression) Predicate {
	return func(a *rete.Activation) (bool, error) {
		v, err := e.Evaluate(a)
		if err != nil {
			return false, err
		}
		ok, isBool := v.(bool)
		if !isBool {
			return false, fmt.Errorf("filter expression %q returned %T, want bool", e.Text(), v)
		}
		return ok, nil
	}
}

// ExpressionKey adapts a compiled rule expression to a KeyFunc.
func ExpressionKey(e *rete.Expression) KeyFunc {
	return e.Evaluate
}

// compileRuleFilters builds fresh filter instances from a rule's compiled
// filter definitions.
func compileRuleFilters(r *rete.Rule) []Filter {
	defs := r.Filters()
	if len(defs) == 0 {
		return nil
	}
	out := make([]Filter, 0, len(defs))
	for _, def := range defs {
		switch def.Kind {
		case ir.FilterKeyChange:
			keys := make([]KeyFunc, len(def.Expressions))
			for i, e := range def.Expressions {
				keys[i] = ExpressionKey(e)
			}
			out = append(out, NewKeyChangeFilter(keys...))
		default:
			preds := make([]Predicate, len(def.Expressions))
			for i, e := range def.Expressions {
				preds[i] = ExpressionPredicate(e)
			}
			out = append(out, NewPredicateFilter(preds...))
		}
	}
	return out
}
