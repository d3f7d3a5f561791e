// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
	ErrUnknownField  = &Error{Code: "UNKNOWN_FIELD", Message: "unknown run parameter"}
	ErrUnknownMode   = &Error{Code: "UNKNOWN_MODE", Message: "unknown request mode"}

	// Transport errors
	ErrTransportFailed  = &Error{Code: "TRANSPORT_FAILED", Message: "backtest service request failed"}
	ErrTransportTimeout = &Error{Code: "TRANSPORT_TIMEOUT", Message: "backtest service request timed out"}

	// Response errors
	ErrMalformedResponse = &Error{Code: "MALFORMED_RESPONSE", Message: "backtest response is not an object"}

	// Panel errors
	ErrSubmissionInFlight = &Error{Code: "SUBMISSION_IN_FLIGHT", Message: "a backtest is already running"}
	ErrRenderFailed       = &Error{Code: "RENDER_FAILED", Message: "rendering failed"}
)
