package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for d3fendgraph errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Graph backend error codes
const (
	BACKEND_UNAVAILABLE ErrorCode = "BACKEND_UNAVAILABLE"
	UNKNOWN_PATTERN     ErrorCode = "UNKNOWN_PATTERN"
	HIERARCHY_CYCLE     ErrorCode = "HIERARCHY_CYCLE"
	UPSERT_FAILED       ErrorCode = "UPSERT_FAILED"
	QUERY_FAILED        ErrorCode = "QUERY_FAILED"
)

// Ingestion error codes
const (
	MALFORMED_RECORD  ErrorCode = "MALFORMED_RECORD"
	SOURCE_UNREADABLE ErrorCode = "SOURCE_UNREADABLE"
	FETCH_FAILED      ErrorCode = "FETCH_FAILED"
)

// Retrieval and synthesis error codes
const (
	TIMEOUT           ErrorCode = "TIMEOUT"
	EMBEDDING_FAILED  ErrorCode = "EMBEDDING_FAILED"
	GENERATION_FAILED ErrorCode = "GENERATION_FAILED"
)

// Error represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var derr *Error
	if errors.As(target, &derr) {
		return e.Code == derr.Code
	}
	return false
}

// NewError creates a new non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// NewRetryableError creates a new retryable Error with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable Error that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a new retryable Error that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// CodeOf extracts the ErrorCode from an error chain.
// Returns an empty code if the chain contains no *Error.
func CodeOf(err error) ErrorCode {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return ""
}

// IsRetryable reports whether the error chain contains a retryable *Error.
func IsRetryable(err error) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Retryable
	}
	return false
}
