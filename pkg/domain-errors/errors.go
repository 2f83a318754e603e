// Package domainerrors carries typed error codes across service boundaries.
// Services create and wrap errors with a Code; transports translate codes to
// protocol responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and retry decisions.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeNotFound           Code = "not_found"
	CodeInvalidState       Code = "invalid_state"
	CodeInvalidAttestation Code = "invalid_attestation"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal"
)

// Error is a coded domain error. The wrapped cause, if any, stays available
// through errors.Is and errors.As.
type Error struct {
	code Code
	msg  string
	err  error
}

// New creates a coded error with no underlying cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// Code returns the classification of this error.
func (e *Error) Code() Code {
	return e.code
}

// Message returns the caller-safe description without the wrapped cause.
func (e *Error) Message() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches two domain errors by code so sentinel-style comparisons work:
// errors.Is(err, dErrors.New(dErrors.CodeNotFound, "")) is true for any
// not-found error.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.code == other.code
	}
	return false
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}
