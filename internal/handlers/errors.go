// ABOUTME: Typed results for handler collaborators (order, booking and completion backends)
// ABOUTME: Kinds let handlers turn backend failures into customer-facing text

package handlers

import (
	"errors"
	"fmt"
)

// ErrHandlerPanic is returned by the dispatcher when a handler panics.
var ErrHandlerPanic = errors.New("domain handler panicked")

// ErrNoHandler is returned when no handler is registered for a domain.
var ErrNoHandler = errors.New("no handler registered for domain")

// Kind classifies a collaborator failure.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindBackendUnavailable Kind = "BACKEND_UNAVAILABLE"
	KindInvalidInput       Kind = "INVALID_INPUT"
)

// Error is a collaborator failure with a kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindBackendUnavailable for errors
// that carry none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackendUnavailable
}
