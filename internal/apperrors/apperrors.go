// Package apperrors implements the behavioral error taxonomy from the
// turn orchestration core's error handling design: a small set of kinds
// callers can switch on, each carrying a machine code, an HTTP status for
// the optional HTTP surface, and a human message.
//
// The shape is grounded on the teacher's bridgev2.RespError pattern
// (ErrCode + Err + StatusCode) with the Matrix-specific status package
// dropped, plus its Unwrap()-based wrapped-error types.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is one of the behavioral error kinds from the error taxonomy.
type Kind string

const (
	KindInvalidInput               Kind = "invalid_input"
	KindNotFound                   Kind = "not_found"
	KindAlreadyExists              Kind = "already_exists"
	KindInvalidState               Kind = "invalid_state"
	KindTransientGeneratorFailure  Kind = "transient_generator_failure"
	KindPersistentDiskFailure      Kind = "persistent_disk_failure"
	KindCancelled                  Kind = "cancelled"
	KindContentDefect              Kind = "content_defect"
)

var httpStatus = map[Kind]int{
	KindInvalidInput:              400,
	KindNotFound:                  404,
	KindAlreadyExists:             409,
	KindInvalidState:              409,
	KindTransientGeneratorFailure: 502,
	KindPersistentDiskFailure:     500,
	KindCancelled:                 499,
	KindContentDefect:             200,
}

// Error is the concrete error type for every taxonomy kind.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, code string, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Status:  httpStatus[kind],
	}
}

// InvalidInput builds a malformed-request error: bad session id,
// filename, or request body.
func InvalidInput(format string, args ...any) *Error {
	return newErr(KindInvalidInput, "INVALID_INPUT", format, args...)
}

// NotFound builds a missing-resource error.
func NotFound(format string, args ...any) *Error {
	return newErr(KindNotFound, "NOT_FOUND", format, args...)
}

// AlreadyExists builds an explicit-id-collision error.
func AlreadyExists(format string, args ...any) *Error {
	return newErr(KindAlreadyExists, "ALREADY_EXISTS", format, args...)
}

// InvalidState builds an error for a turn accepted while the player is
// dead, a second in-flight turn, or Phase B requested without Phase A.
func InvalidState(format string, args ...any) *Error {
	return newErr(KindInvalidState, "INVALID_STATE", format, args...)
}

// TransientGeneratorFailure wraps a generator call failure that is still
// eligible for the Turn Pipeline's one retry / deterministic fallback.
func TransientGeneratorFailure(cause error, format string, args ...any) *Error {
	e := newErr(KindTransientGeneratorFailure, "GENERATOR_FAILURE", format, args...)
	e.Err = cause
	return e
}

// PersistentDiskFailure wraps an I/O error that must abort the turn with
// no partial commit.
func PersistentDiskFailure(cause error, format string, args ...any) *Error {
	e := newErr(KindPersistentDiskFailure, "DISK_FAILURE", format, args...)
	e.Err = cause
	return e
}

// Cancelled builds a caller-initiated cancellation signal. It is a
// no-op for state and purely informational for the UI.
func Cancelled(format string, args ...any) *Error {
	return newErr(KindCancelled, "CANCELLED", format, args...)
}

// ContentDefect marks detected third-person drift or a length excursion.
// The content is still shown; this exists for logging classification.
func ContentDefect(format string, args ...any) *Error {
	return newErr(KindContentDefect, "CONTENT_DEFECT", format, args...)
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus returns the status code to surface over the optional HTTP
// API, defaulting to 500 for errors outside the taxonomy.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 500
}
