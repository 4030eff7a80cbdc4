// Package domainerrors defines the closed error taxonomy for the deposit
// ledger. Services return these instead of free-form strings so callers and
// the transport layer can branch on the kind of failure without parsing
// messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code enumerates every failure kind the ledger can report. The set is closed:
// an operation either succeeds or fails with exactly one of these.
type Code string

const (
	// CodeNotFound: unknown property, deposit, or token id.
	CodeNotFound Code = "not_found"
	// CodeUnauthorized: the caller lacks the required role for this record.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvalidState: the operation is not legal from the current status.
	CodeInvalidState Code = "invalid_state"
	// CodeInvalidInput: zero or mismatched amount, wrong deposit code, refund
	// exceeding principal.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest: malformed request before it reaches domain validation.
	CodeBadRequest Code = "bad_request"
	// CodeConflict: the request collides with concurrent state.
	CodeConflict Code = "conflict"
	// CodeUnknownOperation: the requested operation does not exist.
	CodeUnknownOperation Code = "unknown_operation"
	// CodeInternal: infrastructure failure; safe to surface, never actionable
	// by the caller.
	CodeInternal Code = "internal"
)

// Error carries a code, a human-readable message, and an optional wrapped
// cause. It satisfies errors.Is/As chains through Unwrap.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message. Use it to attach
// offending ids and values for observability.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
