// Package errors provides error codes shared across the sync core and
// the host-app boundary.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies a failure for the drain state machine and for
// bridging into the host application.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local storage errors
	ErrStorage   ErrorCode = "STORAGE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Remote apply errors, classified for the queue
	ErrTransient  ErrorCode = "TRANSIENT"
	ErrConflict   ErrorCode = "CONFLICT"
	ErrRemoteGone ErrorCode = "REMOTE_NOT_FOUND"

	// Queue errors
	ErrQueueEntryNotFound ErrorCode = "QUEUE_ENTRY_NOT_FOUND"
	ErrNoApplier          ErrorCode = "NO_APPLIER"
	ErrDrainInProgress    ErrorCode = "DRAIN_IN_PROGRESS"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error

	// Remote carries the authoritative remote state attached to a
	// business-conflict failure, raw JSON as the remote returned it.
	// The conflict resolver consumes it; nil everywhere else.
	Remote []byte
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Conflict creates a business-conflict error carrying the remote state
// the server reported when it rejected the mutation.
func Conflict(message string, remote []byte) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Remote: remote}
}

// Is checks if an error carries a specific code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrInternal when err carries
// no code.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// RemoteState returns the remote JSON attached to a conflict error, or
// nil when none was attached.
func RemoteState(err error) []byte {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Remote
	}
	return nil
}

// IsTransient reports whether the failure should be retried on a later
// drain. Unclassified errors count as transient: retrying is the safe
// default for an opaque remote failure.
func IsTransient(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		switch appErr.Code {
		case ErrConflict, ErrRemoteGone, ErrValidation, ErrInvalid:
			return false
		}
		return true
	}
	return true
}

// IsConflict reports whether the failure is a business conflict that
// the resolver must decide.
func IsConflict(err error) bool {
	return Is(err, ErrConflict)
}

// IsRemoteGone reports whether the remote record disappeared before the
// queued mutation applied.
func IsRemoteGone(err error) bool {
	return Is(err, ErrRemoteGone)
}
