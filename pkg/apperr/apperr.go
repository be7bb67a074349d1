// Package apperr defines the error kinds that cross module and HTTP boundaries.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-stable error category.
type Kind string

const (
	// KindValidation marks client input or business rule violations.
	KindValidation Kind = "validation"
	// KindNotFound marks a missing or soft-deleted resource.
	KindNotFound Kind = "not_found"
	// KindDependency marks an unreachable or failing collaborator (gateway, store).
	KindDependency Kind = "dependency"
	// KindInternal is reported for errors that carry no kind.
	KindInternal Kind = "internal"
)

// Error carries a kind and a human-readable message.
// It is JSON-encodable so it can travel inside request-reply responses.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports kind equality so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Dependency creates a dependency error wrapping cause.
func Dependency(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindDependency, Message: fmt.Sprintf(format, args...), cause: cause}
}

// AsDependency returns err unchanged when it already carries a kind,
// otherwise wraps it as a dependency failure of op.
func AsDependency(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Dependency(err, "%s failed", op)
}

// KindOf returns the kind of err, or KindInternal when err has none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsDependency reports whether err is a dependency error.
func IsDependency(err error) bool { return KindOf(err) == KindDependency }

// Wire converts err into its transport form. Errors without a kind are
// reported as dependency failures so raw driver errors never leave a module.
func Wire(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return &Error{Kind: appErr.Kind, Message: appErr.Message}
	}
	return &Error{Kind: KindDependency, Message: "internal dependency failure"}
}
