// Package xerrors provides structured error types shared across the control
// plane. Errors carry a typed Kind so callers can branch on failure category
// with errors.As instead of string matching, while still composing with the
// standard errors.Is/As/Unwrap machinery.
package xerrors

import (
	"errors"
	"fmt"
)

// Error is a structured control-plane failure. It preserves a causal chain
// via Cause so wrapped errors survive logging and (where relevant) JSON
// serialization back across the external-call boundary.
type Error struct {
	Kind    string
	Message string
	Cause   *Error
}

// New constructs an Error of the given kind with the given message.
func New(kind, message string) *Error {
	if message == "" {
		message = kind
	}
	return &Error{Kind: kind, Message: message}
}

// Newf formats the message according to a format specifier.
func Newf(kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap converts an arbitrary error into an Error chain tagged with kind.
// If err is nil, Wrap returns nil.
func Wrap(kind string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == "" {
			e.Kind = kind
		}
		return e
	}
	return &Error{Kind: kind, Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// FromError converts an arbitrary error into an *Error chain without forcing
// a kind, preserving any existing Error in the chain.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Message
}

// Unwrap exposes the causal chain to errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind. This lets
// callers write errors.Is(err, xerrors.New(KindDisabled, "")) style checks,
// but the idiomatic path is Kind comparison via As.
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return te.Kind != "" && te.Kind == e.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error.
func KindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasKind reports whether the first *Error in err's chain carries the given
// kind.
func HasKind(err error, kind string) bool {
	return KindOf(err) == kind
}
