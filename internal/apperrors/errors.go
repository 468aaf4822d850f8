// Package apperrors defines the error taxonomy shared by every service and
// handler. Entry points return either a typed success payload or one of these
// kinds; nothing surfaces as an uncategorized failure.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindInvalidInput rejects malformed input before any writes.
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound is a lookup miss, not an exceptional fault.
	KindNotFound Kind = "not_found"
	// KindConflict is an identity-key race during upsert.
	KindConflict Kind = "conflict"
	// KindTransient covers store timeouts and connectivity failures; safe to
	// retry by the caller.
	KindTransient Kind = "transient"
	// KindInvariant marks an internal consistency surprise. Logged and
	// resolved locally, never propagated as a hard failure.
	KindInvariant Kind = "invariant"
)

// Error carries a kind, a human-readable message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors report
// KindTransient so callers always get a retry-safe default.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
