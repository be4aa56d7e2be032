// Package apperr defines the typed error kinds surfaced at the engine
// boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for mapping to an HTTP status at the API boundary.
type Kind string

const (
	NotFound        Kind = "NOT_FOUND"
	AlreadyExists   Kind = "ALREADY_EXISTS"
	InvalidArgument Kind = "INVALID_ARGUMENT"
	Unauthorized    Kind = "UNAUTHORIZED"
	WorkerInactive  Kind = "WORKER_INACTIVE"
	NotOwned        Kind = "NOT_OWNED"
	Conflict        Kind = "CONFLICT"
	Transient       Kind = "TRANSIENT"
)

// Error wraps a Kind with a message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, carrying cause as its Unwrap
// target.
func Wrap(k Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to "" if err is not an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
