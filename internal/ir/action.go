package ir

import (
	"fmt"
	"reflect"
)

// Context is the view of the session an action executes against.
//
// Insert, Update and Retract propagate synchronously before returning, so
// activations they create are eligible for the same Fire call.
type Context interface {
	Insert(fact any) error
	Update(fact any) error
	Retract(fact any) error

	// Halt stops the fire loop once the current rule's actions finish.
	Halt()

	// Rule returns the definition of the firing rule.
	Rule() *Rule
}

// Action is a compiled right-hand-side expression.
//
// Params with an empty Name are resolved at fire time by type: exactly one
// fact in the activation's tuple must be assignable to the parameter type.
type Action struct {
	Text   string
	Params []Param
	Fn     func(ctx Context, args []any) error
}

// Invoke calls the action closure. A panic is converted to an error.
func (a Action) Invoke(ctx Context, args []any) (err error) {
	if a.Fn == nil {
		return fmt.Errorf("action %q has no function", a.Text)
	}
	if len(args) != len(a.Params) {
		return fmt.Errorf("action %q: expected %d arguments, got %d", a.Text, len(a.Params), len(args))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %q panicked: %v", a.Text, r)
		}
	}()
	return a.Fn(ctx, args)
}

// Do builds an action that takes no facts.
func Do(text string, fn func(Context) error) Action {
	return Action{
		Text: text,
		Fn: func(ctx Context, _ []any) error {
			return fn(ctx)
		},
	}
}

// Do1 builds a one-fact action. a names the declaration, or "" to resolve
// the argument by type.
func Do1[A any](text, a string, fn func(Context, A) error) Action {
	return Action{
		Text:   text,
		Params: []Param{{Name: a, Type: reflect.TypeFor[A]()}},
		Fn: func(ctx Context, args []any) error {
			va, err := argAs[A](text, args, 0)
			if err != nil {
				return err
			}
			return fn(ctx, va)
		},
	}
}

// Do2 builds a two-fact action.
func Do2[A, B any](text, a, b string, fn func(Context, A, B) error) Action {
	return Action{
		Text: text,
		Params: []Param{
			{Name: a, Type: reflect.TypeFor[A]()},
			{Name: b, Type: reflect.TypeFor[B]()},
		},
		Fn: func(ctx Context, args []any) error {
			va, err := argAs[A](text, args, 0)
			if err != nil {
				return err
			}
			vb, err := argAs[B](text, args, 1)
			if err != nil {
				return err
			}
			return fn(ctx, va, vb)
		},
	}
}

// Do3 builds a three-fact action.
func Do3[A, B, C any](text, a, b, c string, fn func(Context, A, B, C) error) Action {
	return Action{
		Text: text,
		Params: []Param{
			{Name: a, Type: reflect.TypeFor[A]()},
			{Name: b, Type: reflect.TypeFor[B]()},
			{Name: c, Type: reflect.TypeFor[C]()},
		},
		Fn: func(ctx Context, args []any) error {
			va, err := argAs[A](text, args, 0)
			if err != nil {
				return err
			}
			vb, err := argAs[B](text, args, 1)
			if err != nil {
				return err
			}
			vc, err := argAs[C](text, args, 2)
			if err != nil {
				return err
			}
			return fn(ctx, va, vb, vc)
		},
	}
}
