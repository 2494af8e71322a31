// Package syncerr defines the error taxonomy shared by the entity cache,
// the outbox, the remote backend and the reconciler.
//
// Four codes exist:
//   - NOT_FOUND: a targeted update named an id that is absent
//   - TRANSIENT_IO: the store or the network is unavailable; retry
//   - REMOTE_REJECTED: the remote refused an action on business rules; do not retry
//   - FATAL: anything else; propagate to the caller
//
// Cache and outbox operations return these errors to their caller as-is.
// The reconciler absorbs TRANSIENT_IO through backoff.
package syncerr

import (
	"context"
	"errors"
	"fmt"
)

// Code categorizes an Error.
type Code string

const (
	// CodeNotFound indicates a targeted update referenced a missing row.
	CodeNotFound Code = "NOT_FOUND"

	// CodeTransientIO indicates the store or remote was temporarily unavailable.
	CodeTransientIO Code = "TRANSIENT_IO"

	// CodeRemoteRejected indicates the remote refused an action as invalid.
	CodeRemoteRejected Code = "REMOTE_REJECTED"

	// CodeFatal indicates an unrecoverable local failure.
	CodeFatal Code = "FATAL"
)

// Error is a coded error with enough context to report to a user.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op is the operation that failed (e.g. "adjust quantity", "push").
	Op string

	// Entity is the entity kind involved, if any.
	Entity string

	// ID is the entity or action id involved, if any.
	ID string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Entity != "" && e.ID != "":
		return fmt.Sprintf("%s: %s: %s (%s=%s)", e.Code, e.Op, msg, e.Entity, e.ID)
	case e.ID != "":
		return fmt.Sprintf("%s: %s: %s (id=%s)", e.Code, e.Op, msg, e.ID)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates a NOT_FOUND error for a targeted update.
func NotFound(op, entity, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: "not found",
	}
}

// Transient wraps err as TRANSIENT_IO.
func Transient(op string, err error) *Error {
	return &Error{Code: CodeTransientIO, Op: op, Err: err}
}

// Rejected creates a REMOTE_REJECTED error carrying the remote's reason.
func Rejected(op, id, reason string) *Error {
	return &Error{
		Code:    CodeRemoteRejected,
		Op:      op,
		ID:      id,
		Message: reason,
	}
}

// Fatal wraps err as FATAL.
func Fatal(op string, err error) *Error {
	return &Error{Code: CodeFatal, Op: op, Err: err}
}

// CodeOf returns the code of the outermost coded error in err's chain,
// or "" if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a NOT_FOUND error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsTransient returns true if err is a TRANSIENT_IO error.
func IsTransient(err error) bool {
	return CodeOf(err) == CodeTransientIO
}

// IsRejected returns true if err is a REMOTE_REJECTED error.
func IsRejected(err error) bool {
	return CodeOf(err) == CodeRemoteRejected
}

// IsFatal returns true if err is a FATAL error.
func IsFatal(err error) bool {
	return CodeOf(err) == CodeFatal
}

// Classify returns err as a coded error.
//
// Errors that already carry a code are returned unchanged. Deadline-exceeded
// errors become TRANSIENT_IO (a timed-out call is retryable). Everything else
// becomes FATAL. Classify(nil) returns nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(op, err)
	}
	return Fatal(op, err)
}
