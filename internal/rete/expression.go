package rete

import (
	"fmt"

	"github.com/roach88/rete/internal/ir"
)

// selfSlot marks an argument bound to the fact under evaluation rather than
// to a tuple element.
const selfSlot = -1

// boundExpr is an expression with its argument index map: slots[i] is the
// tuple position of argument i, or selfSlot. The map is computed once by the
// builder so evaluation only indexes into the tuple.
type boundExpr struct {
	expr  ir.Expr
	slots []int
	kind  ExpressionKind
	rule  string
}

func (b *boundExpr) args(t *Tuple, f *Fact) []any {
	args := make([]any, len(b.slots))
	for i, slot := range b.slots {
		if slot == selfSlot {
			if f != nil {
				args[i] = f.object
			}
			continue
		}
		if t == nil {
			continue
		}
		if e := t.At(slot); e != nil {
			args[i] = e.object
		}
	}
	return args
}

func (b *boundExpr) failure(args []any, err error) *ExpressionError {
	return &ExpressionError{
		Kind:       b.kind,
		Expression: b.expr.Text,
		Rule:       b.rule,
		Facts:      args,
		Err:        err,
	}
}

// evaluate invokes the expression. Errors are returned as *ExpressionError
// without raising an event.
func (b *boundExpr) evaluate(t *Tuple, f *Fact) (any, error) {
	args := b.args(t, f)
	v, err := b.expr.Invoke(args)
	if err != nil {
		return nil, b.failure(args, err)
	}
	return v, nil
}

// test evaluates a boolean condition. A failure raises the condition
// failure event; a handled failure counts as no match.
func (b *boundExpr) test(ctx *ExecutionContext, t *Tuple, f *Fact) (bool, error) {
	args := b.args(t, f)
	v, err := b.expr.Invoke(args)
	if err == nil {
		if ok, isBool := v.(bool); isBool {
			return ok, nil
		}
		err = fmt.Errorf("returned %T, want bool", v)
	}
	return false, ctx.Events.RaiseFailure(EventConditionFailed, nil, b.failure(args, err))
}

// testAll evaluates conditions left to right, stopping at the first false.
func testAll(ctx *ExecutionContext, conds []*boundExpr, t *Tuple, f *Fact) (bool, error) {
	for _, c := range conds {
		ok, err := c.test(ctx, t, f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Expression is a rule-level expression evaluated against an activation,
// used for agenda filters and dynamic priorities.
type Expression struct {
	bound *boundExpr
}

// Text returns the expression source text.
func (e *Expression) Text() string {
	return e.bound.expr.Text
}

// Evaluate invokes the expression over the activation's tuple.
// Failures are returned as *ExpressionError.
func (e *Expression) Evaluate(a *Activation) (any, error) {
	return e.bound.evaluate(a.tuple, nil)
}
