package backend

import (
	"errors"
	"fmt"
)

// ErrInit marks a backend that could not be initialized. Wrapped by every
// Init failure so callers can classify with errors.Is.
var ErrInit = errors.New("backend: init failed")

// Op constants name backend operations for error context.
const (
	OpInit   = "init"
	OpUpsert = "upsert"
	OpSearch = "search"
	OpCount  = "count"
)

// Error wraps an operational backend failure with the backend name and the
// operation for diagnostics.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string { return e.Backend + ": " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as an operational failure of the named backend.
func NewError(backend, op string, err error) *Error {
	return &Error{Backend: backend, Op: op, Err: err}
}

// NewInitError wraps err as an initialization failure. errors.Is(err,
// ErrInit) holds for the result and the cause stays unwrappable.
func NewInitError(backend string, err error) *Error {
	return &Error{Backend: backend, Op: OpInit, Err: fmt.Errorf("%w: %w", ErrInit, err)}
}
