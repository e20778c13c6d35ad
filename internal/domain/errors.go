package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entry or image does not exist in any
	// backend that was consulted.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable marks failures of a remote backend (database,
	// object storage) as opposed to a missing record.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ValidationError is a rejected user input. Reason is safe to show to the
// user as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return e.Reason
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IOFailure wraps a local disk error (permissions, disk full, partial write).
type IOFailure struct {
	Op  string
	Err error
}

func (e *IOFailure) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *IOFailure) Unwrap() error { return e.Err }

// IOError wraps err as an IOFailure unless it is nil.
func IOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOFailure{Op: op, Err: err}
}

// Unavailable wraps err so that errors.Is(err, ErrBackendUnavailable) holds.
func Unavailable(backend string, err error) error {
	return fmt.Errorf("%s: %w: %w", backend, ErrBackendUnavailable, err)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsUnavailable(err error) bool { return errors.Is(err, ErrBackendUnavailable) }

// UserMessage returns the part of err that can be shown in a flash message.
func UserMessage(err error) string {
	var v *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &v):
		return v.Reason
	case IsNotFound(err):
		return "not found"
	case IsUnavailable(err):
		return "storage is temporarily unavailable, please retry"
	default:
		return "internal error, please retry later"
	}
}
