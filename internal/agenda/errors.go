package agenda

import (
	"errors"
	"fmt"

	"github.com/roach88/rete/internal/rete"
)

// FilterError is returned when an agenda filter fails while admitting an
// activation. The activation is left pending.
type FilterError struct {
	Rule       string
	Activation *rete.Activation
	Err        error
}

// Error implements the error interface.
func (e *FilterError) Error() string {
	return fmt.Sprintf("agenda filter failed (rule=%s): %v", e.Rule, e.Err)
}

// Unwrap returns the underlying error.
func (e *FilterError) Unwrap() error {
	return e.Err
}

// IsFilterError returns true if err wraps a *FilterError.
func IsFilterError(err error) bool {
	var fe *FilterError
	return errors.As(err, &fe)
}

// PriorityError is returned when a dynamic priority expression fails or
// returns a non-int. The mutation that queued the activation is aborted.
type PriorityError struct {
	Rule string
	Err  error
}

// Error implements the error interface.
func (e *PriorityError) Error() string {
	return fmt.Sprintf("priority of rule %s: %v", e.Rule, e.Err)
}

// Unwrap returns the underlying error.
func (e *PriorityError) Unwrap() error {
	return e.Err
}
