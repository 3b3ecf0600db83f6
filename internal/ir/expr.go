package ir

import (
	"fmt"
	"reflect"
)

// Param describes one argument of a compiled expression.
//
// Name references a pattern declaration of the enclosing rule. An empty Name
// means "the pattern the expression is attached to" for conditions and
// aggregate selectors, and "resolve by type" for action parameters.
type Param struct {
	Name string       `json:"name,omitempty"`
	Type reflect.Type `json:"-"`
}

// Expr is a compiled expression: a native closure plus its argument shape.
//
// Fn receives exactly len(Params) arguments in Params order. The builder
// computes, once per network, where each argument lives in a tuple.
type Expr struct {
	Text   string
	Params []Param
	Fn     func(args []any) (any, error)
}

// Arity returns the number of declared parameters.
func (e Expr) Arity() int {
	return len(e.Params)
}

// IsZero reports whether the expression is unset.
func (e Expr) IsZero() bool {
	return e.Fn == nil && e.Text == ""
}

// Invoke calls the expression closure with the given arguments.
// A panic inside the closure is converted to an error.
func (e Expr) Invoke(args []any) (result any, err error) {
	if e.Fn == nil {
		return nil, fmt.Errorf("expression %q has no function", e.Text)
	}
	if len(args) != len(e.Params) {
		return nil, fmt.Errorf("expression %q: expected %d arguments, got %d", e.Text, len(e.Params), len(args))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expression %q panicked: %v", e.Text, r)
		}
	}()
	return e.Fn(args)
}

// Fn1 builds a one-argument expression from a typed closure.
// a names the declaration the argument is bound to ("" = own pattern).
func Fn1[A, R any](text, a string, fn func(A) R) Expr {
	return Expr{
		Text:   text,
		Params: []Param{{Name: a, Type: reflect.TypeFor[A]()}},
		Fn: func(args []any) (any, error) {
			va, err := argAs[A](text, args, 0)
			if err != nil {
				return nil, err
			}
			return fn(va), nil
		},
	}
}

// Fn2 builds a two-argument expression from a typed closure.
func Fn2[A, B, R any](text, a, b string, fn func(A, B) R) Expr {
	return Expr{
		Text: text,
		Params: []Param{
			{Name: a, Type: reflect.TypeFor[A]()},
			{Name: b, Type: reflect.TypeFor[B]()},
		},
		Fn: func(args []any) (any, error) {
			va, err := argAs[A](text, args, 0)
			if err != nil {
				return nil, err
			}
			vb, err := argAs[B](text, args, 1)
			if err != nil {
				return nil, err
			}
			return fn(va, vb), nil
		},
	}
}

// Fn3 builds a three-argument expression from a typed closure.
func Fn3[A, B, C, R any](text, a, b, c string, fn func(A, B, C) R) Expr {
	return Expr{
		Text: text,
		Params: []Param{
			{Name: a, Type: reflect.TypeFor[A]()},
			{Name: b, Type: reflect.TypeFor[B]()},
			{Name: c, Type: reflect.TypeFor[C]()},
		},
		Fn: func(args []any) (any, error) {
			va, err := argAs[A](text, args, 0)
			if err != nil {
				return nil, err
			}
			vb, err := argAs[B](text, args, 1)
			if err != nil {
				return nil, err
			}
			vc, err := argAs[C](text, args, 2)
			if err != nil {
				return nil, err
			}
			return fn(va, vb, vc), nil
		},
	}
}

// Cond builds a single-pattern (alpha) condition over the pattern it is
// attached to.
func Cond[T any](text string, fn func(T) bool) Expr {
	return Fn1[T, bool](text, "", fn)
}

// Join2 builds a join condition over two declarations.
func Join2[A, B any](text, a, b string, fn func(A, B) bool) Expr {
	return Fn2[A, B, bool](text, a, b, fn)
}

// Join3 builds a join condition over three declarations.
func Join3[A, B, C any](text, a, b, c string, fn func(A, B, C) bool) Expr {
	return Fn3[A, B, C, bool](text, a, b, c, fn)
}

// Select builds an aggregate selector over the aggregation source pattern.
func Select[T, V any](text string, fn func(T) V) Expr {
	return Fn1[T, V](text, "", fn)
}

// argAs converts args[i] to T without panicking on a type mismatch.
func argAs[T any](text string, args []any, i int) (T, error) {
	var zero T
	if args[i] == nil {
		// nil is a valid value for interface and pointer parameters.
		return zero, nil
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("expression %q: argument %d is %T, want %s", text, i, args[i], reflect.TypeFor[T]())
	}
	return v, nil
}

// SelectMany builds a flattening selector. The returned sequence is
// converted to []any inside the closure so aggregators never reflect.
func SelectMany[T, V any](text string, fn func(T) []V) Expr {
	return Fn1[T, []any](text, "", func(t T) []any {
		vs := fn(t)
		out := make([]any, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out
	})
}
