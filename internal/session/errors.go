package session

import (
	"errors"
	"fmt"
	"reflect"
)

// CycleLimitError is returned by Fire when more rules would fire in one
// call than the session's cycle limit allows. Activations still queued
// stay on the agenda.
type CycleLimitError struct {
	SessionID string
	Cycles    int
	Limit     int
}

// Error implements the error interface.
func (e *CycleLimitError) Error() string {
	return fmt.Sprintf("session %s exceeded cycle limit: %d > %d", e.SessionID, e.Cycles, e.Limit)
}

// IsCycleLimitError returns true if err wraps a *CycleLimitError.
func IsCycleLimitError(err error) bool {
	var ce *CycleLimitError
	return errors.As(err, &ce)
}

// ActionArgumentError is returned when an action parameter cannot be bound
// to exactly one fact of the activation.
type ActionArgumentError struct {
	Rule    string
	Action  string
	Param   int
	Name    string
	Type    reflect.Type
	Matches int
}

// Error implements the error interface.
func (e *ActionArgumentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("rule %s action %q: declaration %q is not bound", e.Rule, e.Action, e.Name)
	}
	return fmt.Sprintf("rule %s action %q: parameter %d of type %s matches %d facts, want exactly 1",
		e.Rule, e.Action, e.Param, e.Type, e.Matches)
}

// IsActionArgumentError returns true if err wraps an *ActionArgumentError.
func IsActionArgumentError(err error) bool {
	var ae *ActionArgumentError
	return errors.As(err, &ae)
}
