package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest            = "BAD_REQUEST"
	ErrNotFound              = "NOT_FOUND"
	ErrMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	ErrInternalError         = "INTERNAL_ERROR"
	ErrAuditStoreUnavailable = "AUDIT_STORE_UNAVAILABLE"
)

// ErrorEnvelope is the error body returned by the service. It implements the
// error interface. Code selects the HTTP status and is not serialized; the
// dashboard reads Message first and falls back to Error.
type ErrorEnvelope struct {
	Code    string `json:"-"`
	Success bool   `json:"success"`
	Err     string `json:"error"`
	Message string `json:"message"`

	cause error
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

// Unwrap returns the underlying cause, if any.
func (e *ErrorEnvelope) Unwrap() error {
	return e.cause
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Err: msg, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Err: msg, Message: msg}
}

// NewMethodNotAllowedError returns a METHOD_NOT_ALLOWED error.
func NewMethodNotAllowedError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrMethodNotAllowed,
		Err:     "Method not allowed",
		Message: "Method not allowed",
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Err:     "internal error",
		Message: "An unexpected error occurred",
	}
}

// NewAuditStoreError wraps a query or connection failure. The underlying
// message is exposed in Err; message is the user-facing text.
func NewAuditStoreError(cause error, message string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrAuditStoreUnavailable,
		Err:     cause.Error(),
		Message: message,
		cause:   cause,
	}
}
