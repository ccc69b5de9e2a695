// Package apperr holds the error taxonomy shared by the services and the
// HTTP adapter.
package apperr

import (
	"errors"
	"fmt"

	"github.com/atinyakov/linkcore/internal/storage"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// Error is a taxonomy error with a human-readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// OperationError is a persistence failure that matched no known constraint.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Translate maps a persistence error onto the taxonomy. Taxonomy errors
// pass through unchanged; nil stays nil.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, storage.ErrConflict):
		return Conflict("a record with this identifier already exists")
	case errors.Is(err, storage.ErrNotFound):
		return NotFound("record not found")
	default:
		return &OperationError{Op: op, Err: err}
	}
}

// IsKind reports whether err belongs to any taxonomy kind.
func IsKind(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound)
}
