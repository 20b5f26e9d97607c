package types

import (
	"errors"
	"fmt"
)

// ErrorType is the OpenAI-compatible error category written to clients.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrUpstream       ErrorType = "upstream_error"
	ErrPermission     ErrorType = "permission_error"
)

// Well-known error codes emitted by the gateway itself. Backend codes are
// passed through verbatim and are not enumerated here.
const (
	CodeMissingAPIKey    = "missing_api_key"
	CodeUABlocked        = "ua_blocked"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeBridgeFull       = "bridge_saturated"
	CodeInternal         = "internal_error"
)

// Error represents a structured error with type, code, message, and metadata.
type Error struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Code != "" {
		prefix += "/" + e.Code
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given type and message.
func NewError(typ ErrorType, message string) *Error {
	return &Error{Type: typ, Message: message}
}

// WithCode sets the wire error code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// NewInvalidRequestError is shorthand for a 400 invalid_request_error.
func NewInvalidRequestError(format string, args ...any) *Error {
	return NewError(ErrInvalidRequest, fmt.Sprintf(format, args...)).WithHTTPStatus(400)
}

// NewUpstreamError is shorthand for a 502 upstream_error.
func NewUpstreamError(format string, args ...any) *Error {
	return NewError(ErrUpstream, fmt.Sprintf(format, args...)).WithHTTPStatus(502)
}

// AsError unwraps err looking for a *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	if e, ok := AsError(err); ok {
		return e.Type
	}
	return ""
}

// ErrorBody is the inner object of the OpenAI error envelope.
type ErrorBody struct {
	Message string    `json:"message"`
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
}

// ErrorEnvelope is the uniform error response shape: {"error": {...}}.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// Envelope returns the wire representation of e. The cause is never included.
func (e *Error) Envelope() ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorBody{
		Message: e.Message,
		Type:    e.Type,
		Code:    e.Code,
	}}
}
