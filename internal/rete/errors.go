package rete

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rete/internal/compiler"
)

// FactErrorCode categorizes working memory errors.
type FactErrorCode string

const (
	// ErrCodeDuplicateFact indicates an insert of a fact already in working memory.
	ErrCodeDuplicateFact FactErrorCode = "DUPLICATE_FACT"

	// ErrCodeUnknownFact indicates an update or retract of a fact not in working memory.
	ErrCodeUnknownFact FactErrorCode = "UNKNOWN_FACT"

	// ErrCodeUnsupportedFact indicates an object that cannot be identified.
	ErrCodeUnsupportedFact FactErrorCode = "UNSUPPORTED_FACT"
)

// Sentinels for errors.Is matching against *FactError.
var (
	ErrDuplicateFact   = errors.New("duplicate fact")
	ErrUnknownFact     = errors.New("unknown fact")
	ErrUnsupportedFact = errors.New("unsupported fact")
)

// FactError is returned by working memory operations.
type FactError struct {
	// Code identifies the error category.
	Code FactErrorCode

	// Object is the offending user object.
	Object any

	// Reason carries additional detail for unsupported facts.
	Reason string
}

// Error implements the error interface.
func (e *FactError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %T: %s", e.Code, e.Object, e.Reason)
	}
	return fmt.Sprintf("%s: %T %v", e.Code, e.Object, e.Object)
}

// Is matches the sentinel for the error's code.
func (e *FactError) Is(target error) bool {
	switch e.Code {
	case ErrCodeDuplicateFact:
		return target == ErrDuplicateFact
	case ErrCodeUnknownFact:
		return target == ErrUnknownFact
	case ErrCodeUnsupportedFact:
		return target == ErrUnsupportedFact
	}
	return false
}

// NewDuplicateFactError creates a FactError for a duplicate insert.
func NewDuplicateFactError(obj any) *FactError {
	return &FactError{Code: ErrCodeDuplicateFact, Object: obj}
}

// NewUnknownFactError creates a FactError for an unknown update or retract.
func NewUnknownFactError(obj any) *FactError {
	return &FactError{Code: ErrCodeUnknownFact, Object: obj}
}

// NewUnsupportedFactError creates a FactError for an unidentifiable object.
func NewUnsupportedFactError(obj any, reason string) *FactError {
	return &FactError{Code: ErrCodeUnsupportedFact, Object: obj, Reason: reason}
}

// IsDuplicateFact returns true if err is a duplicate-fact error.
func IsDuplicateFact(err error) bool {
	return errors.Is(err, ErrDuplicateFact)
}

// IsUnknownFact returns true if err is an unknown-fact error.
func IsUnknownFact(err error) bool {
	return errors.Is(err, ErrUnknownFact)
}

// ExpressionKind identifies where a failing expression was evaluated.
type ExpressionKind string

const (
	ExprCondition ExpressionKind = "condition"
	ExprJoin      ExpressionKind = "join"
	ExprAggregate ExpressionKind = "aggregate"
	ExprAction    ExpressionKind = "action"
	ExprFilter    ExpressionKind = "filter"
	ExprPriority  ExpressionKind = "priority"
)

// ExpressionError wraps a failure raised while evaluating a compiled
// expression, together with the facts it was evaluated against.
type ExpressionError struct {
	Kind       ExpressionKind
	Expression string

	// Rule is empty for alpha conditions, which may be shared by several rules.
	Rule string

	Facts []any
	Err   error
}

// Error implements the error interface.
func (e *ExpressionError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s expression %q failed (rule=%s): %v", e.Kind, e.Expression, e.Rule, e.Err)
	}
	return fmt.Sprintf("%s expression %q failed: %v", e.Kind, e.Expression, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExpressionError) Unwrap() error {
	return e.Err
}

// IsExpressionError returns true if err wraps an *ExpressionError.
// Uses errors.As to handle wrapped errors.
func IsExpressionError(err error) bool {
	var ee *ExpressionError
	return errors.As(err, &ee)
}

// BuildError is returned by Build when the rule set is malformed.
type BuildError struct {
	RuleSet string
	Errors  []compiler.ValidationError
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("rule set %q is invalid: %s", e.RuleSet, strings.Join(msgs, "; "))
}

// IsBuildError returns true if err is a *BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}
