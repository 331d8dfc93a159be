package repositories

import (
	"errors"
	"fmt"
)

// ErrorCode enumerates repository error causes surfaced to services.
type ErrorCode string

const (
	// ErrorUnknown represents an unspecified failure.
	ErrorUnknown ErrorCode = "repository_unknown"
	// ErrorNotFound indicates the addressed row does not exist.
	ErrorNotFound ErrorCode = "repository_not_found"
	// ErrorConflict indicates a constraint or precondition rejected the write.
	ErrorConflict ErrorCode = "repository_conflict"
	// ErrorUnavailable indicates the backing store could not be reached.
	ErrorUnavailable ErrorCode = "repository_unavailable"
)

// Error is the concrete RepositoryError carried out of the postgres layer.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the addressed row was missing.
func (e *Error) IsNotFound() bool { return e != nil && e.Code == ErrorNotFound }

// IsConflict reports whether a precondition rejected the write.
func (e *Error) IsConflict() bool { return e != nil && e.Code == ErrorConflict }

// IsUnavailable reports whether the store could not be reached.
func (e *Error) IsUnavailable() bool { return e != nil && e.Code == ErrorUnavailable }

// NewError constructs a categorised repository error.
func NewError(op string, code ErrorCode, message string, err error) *Error {
	if message == "" {
		message = string(code)
	}
	return &Error{Op: op, Code: code, Message: message, Err: err}
}

// IsNotFound reports whether err categorises as a missing row.
func IsNotFound(err error) bool {
	var re RepositoryError
	return errors.As(err, &re) && re.IsNotFound()
}

// IsConflict reports whether err categorises as a rejected write.
func IsConflict(err error) bool {
	var re RepositoryError
	return errors.As(err, &re) && re.IsConflict()
}
