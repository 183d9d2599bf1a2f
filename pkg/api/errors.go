package api

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode categorizes a protocol error.
type ErrorCode string

const (
	// CodeValidation marks structurally invalid input. Fatal, never retried.
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	// CodeConnection marks a channel that failed to open or timed out.
	CodeConnection ErrorCode = "CONNECTION_ERROR"
	// CodeRequest marks a non-2xx response from a control call.
	CodeRequest ErrorCode = "REQUEST_ERROR"
	// CodeStream marks an error event received mid-stream.
	CodeStream ErrorCode = "STREAM_ERROR"
	// CodeInternal marks unexpected failures (panics, marshalling).
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorContext records where an error occurred. It is attached when the
// error crosses the pipeline boundary.
type ErrorContext struct {
	Operation Operation `json:"operation"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

// ProtocolError is the uniform error shape every error is normalized to
// before it reaches the session controller.
type ProtocolError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Context ErrorContext   `json:"context"`
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates a ProtocolError for invalid input. The param
// names the offending field and is carried in Details.
func NewValidationError(param, message string) *ProtocolError {
	e := &ProtocolError{Code: CodeValidation, Message: message}
	if param != "" {
		e.Details = map[string]any{"param": param}
	}
	return e
}

// NewConnectionError creates a ProtocolError for a channel that could not
// be established.
func NewConnectionError(message string) *ProtocolError {
	return &ProtocolError{Code: CodeConnection, Message: message}
}

// NewRequestError creates a ProtocolError carrying a backend-reported
// message from a failed control call.
func NewRequestError(message string) *ProtocolError {
	return &ProtocolError{Code: CodeRequest, Message: message}
}

// NewStreamError creates a ProtocolError for an error event received on an
// open channel.
func NewStreamError(message string) *ProtocolError {
	return &ProtocolError{Code: CodeStream, Message: message}
}

// NewInternalError creates a ProtocolError for unexpected failures.
func NewInternalError(message string) *ProtocolError {
	return &ProtocolError{Code: CodeInternal, Message: message}
}

// Normalize wraps err into a ProtocolError and stamps the request context
// onto it. Already-normalized errors keep their code, message and details;
// only a missing context is filled in. Normalize never suppresses: the
// returned error always carries the original message.
func Normalize(err error, rc *RequestContext) *ProtocolError {
	if err == nil {
		return nil
	}

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		pe = &ProtocolError{Code: CodeInternal, Message: err.Error()}
	}

	if pe.Context.Timestamp.IsZero() {
		pe.Context = ErrorContext{Timestamp: time.Now()}
		if rc != nil {
			pe.Context.Operation = rc.Operation
			pe.Context.SessionID = rc.SessionID
		}
	}
	return pe
}

// IsValidation reports whether err is a validation error. Validation errors
// short-circuit before network I/O and are never retried.
func IsValidation(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Code == CodeValidation
}

// CodeOf returns the error code of err, or CodeInternal for errors that
// have not been normalized.
func CodeOf(err error) ErrorCode {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeInternal
}
