package record

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes replication errors.
type ErrorCode string

const (
	// CodeInvalidClock indicates a malformed vector clock on
	// deserialization. Rejected at the boundary, never enters the store.
	CodeInvalidClock ErrorCode = "INVALID_CLOCK"

	// CodePreconditionViolation indicates a programmer error such as
	// merging records with mismatched ids. Fatal to the caller, not
	// retried.
	CodePreconditionViolation ErrorCode = "PRECONDITION_VIOLATION"

	// CodeNotFound indicates an operation on an unknown node id.
	// Recoverable; the caller decides create-vs-error.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeVersionNotFound indicates a restore target with no matching
	// history entry. Recoverable, surfaced to the caller.
	CodeVersionNotFound ErrorCode = "VERSION_NOT_FOUND"
)

// Error is a replication error with a structured code for recovery
// decisions. Persistence failures are NOT wrapped in Error; they propagate
// unchanged so the caller can retry at the appropriate layer.
type Error struct {
	Code    ErrorCode
	Message string
	NodeID  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidClock builds an invalid-clock error for a record arriving with
// a malformed vector clock.
func NewInvalidClock(nodeID string, cause error) *Error {
	return &Error{
		Code:    CodeInvalidClock,
		Message: cause.Error(),
		NodeID:  nodeID,
		Err:     cause,
	}
}

// NewPrecondition builds a precondition-violation error.
func NewPrecondition(message string) *Error {
	return &Error{Code: CodePreconditionViolation, Message: message}
}

// NewNotFound builds a not-found error for an unknown node id.
func NewNotFound(nodeID string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: "no record with this id",
		NodeID:  nodeID,
	}
}

// NewVersionNotFound builds a version-not-found error for a restore target
// with no matching history entry.
func NewVersionNotFound(nodeID string, timestamp int64) *Error {
	return &Error{
		Code:    CodeVersionNotFound,
		Message: fmt.Sprintf("no history entry at timestamp %d", timestamp),
		NodeID:  nodeID,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsInvalidClock reports whether err is an invalid-clock error.
func IsInvalidClock(err error) bool { return hasCode(err, CodeInvalidClock) }

// IsPrecondition reports whether err is a precondition violation.
func IsPrecondition(err error) bool { return hasCode(err, CodePreconditionViolation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsVersionNotFound reports whether err is a version-not-found error.
func IsVersionNotFound(err error) bool { return hasCode(err, CodeVersionNotFound) }
