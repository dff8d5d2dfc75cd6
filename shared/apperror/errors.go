// Package apperror provides client facing errors with a category, a title and a message.
package apperror

import (
	"errors"
	"fmt"
)

// Kind categorizes an application error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Sentinels for errors.Is checks against a Kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
)

// Error is an error that can be shown to API callers.
type Error struct {
	Kind    Kind
	Title   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Title
	if e.Message != "" {
		if msg != "" {
			msg += ": "
		}
		msg += e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation creates a validation error.
func Validation(title, message string) *Error {
	return &Error{Kind: KindValidation, Title: title, Message: message}
}

// Validationf creates a validation error with a formatted message.
func Validationf(title, format string, args ...any) *Error {
	return Validation(title, fmt.Sprintf(format, args...))
}

// NotFound creates a not found error.
func NotFound(title, message string) *Error {
	return &Error{Kind: KindNotFound, Title: title, Message: message}
}

// Conflict creates a conflict error.
func Conflict(title, message string) *Error {
	return &Error{Kind: KindConflict, Title: title, Message: message}
}

// Internal wraps an unexpected error.
func Internal(title string, cause error) *Error {
	return &Error{Kind: KindInternal, Title: title, Cause: cause}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}
