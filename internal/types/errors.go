package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a namespaced error code for engine errors.
type ErrorCode string

// Endpoint adapter error codes
const (
	AUTH_FAILED             ErrorCode = "AUTH_FAILED"
	AUTH_MALFORMED_RESPONSE ErrorCode = "AUTH_MALFORMED_RESPONSE"
	THREAD_INIT_FAILED      ErrorCode = "THREAD_INIT_FAILED"
	ENDPOINT_CALL_FAILED    ErrorCode = "ENDPOINT_CALL_FAILED"
	ENDPOINT_TIMEOUT        ErrorCode = "ENDPOINT_TIMEOUT"
	ENDPOINT_BAD_PAYLOAD    ErrorCode = "ENDPOINT_BAD_PAYLOAD"
)

// Judge error codes
const (
	JUDGE_CALL_FAILED      ErrorCode = "JUDGE_CALL_FAILED"
	JUDGE_MALFORMED_OUTPUT ErrorCode = "JUDGE_MALFORMED_OUTPUT"
)

// Scenario and configuration error codes
const (
	SCENARIO_INVALID         ErrorCode = "SCENARIO_INVALID"
	SCENARIO_LOAD_FAILED     ErrorCode = "SCENARIO_LOAD_FAILED"
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	INTEGRATION_INVALID      ErrorCode = "INTEGRATION_INVALID"
)

// Run and persistence error codes
const (
	RUN_CANCELLED       ErrorCode = "RUN_CANCELLED"
	RUN_SYSTEMIC_FAILED ErrorCode = "RUN_SYSTEMIC_FAILED"
	STORE_OPEN_FAILED   ErrorCode = "STORE_OPEN_FAILED"
	STORE_QUERY_FAILED  ErrorCode = "STORE_QUERY_FAILED"
	EXPORT_FAILED       ErrorCode = "EXPORT_FAILED"
)

// EngineError is a structured error carrying a namespaced code, a message,
// a retryability hint, and an optional wrapped cause.
type EngineError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can use errors.Is with sentinel
// EngineError values.
func (e *EngineError) Is(target error) bool {
	var engineErr *EngineError
	if errors.As(target, &engineErr) {
		return e.Code == engineErr.Code
	}
	return false
}

// NewError creates a non-retryable EngineError.
func NewError(code ErrorCode, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// NewRetryableError creates a retryable EngineError. Use for transient
// conditions that may succeed on retry, such as endpoint timeouts and 5xx.
func NewRetryableError(code ErrorCode, message string) *EngineError {
	return &EngineError{Code: code, Message: message, Retryable: true}
}

// WrapError creates a non-retryable EngineError wrapping an existing error.
func WrapError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Cause: cause}
}

// WrapRetryableError creates a retryable EngineError wrapping an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Retryable: true, Cause: cause}
}

// IsRetryable reports whether err (or any error in its chain) is an
// EngineError marked retryable.
func IsRetryable(err error) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err's chain, or "" if err is not an
// EngineError.
func CodeOf(err error) ErrorCode {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return ""
}
