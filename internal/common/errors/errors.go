// Package errors provides the standardized error type used across the
// template generation pipeline and the translation of raw upstream failures
// into user-safe messages.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeUploadFailed     ErrorCode = "UPLOAD_FAILED"
	ErrCodeRenderFailed     ErrorCode = "RENDER_FAILED"
	ErrCodeInvalidResponse  ErrorCode = "INVALID_RESPONSE"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error. Details carries
// the raw upstream text (response body, transport error) and is never shown
// to end users directly; see ToUserMessage.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ToJobVariables returns a map suitable for failing a workflow job.
func (e *StandardError) ToJobVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    string(e.Code),
		"errorMessage": e.Message,
		"retryable":    e.Retryable,
		"timestamp":    e.Timestamp.Format(time.RFC3339),
	}
	for k, v := range e.Metadata {
		vars[k] = v
	}
	return vars
}

// NewValidationError creates a non-retryable validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUploadError describes a failed upload attempt. cause may be nil when
// the storage endpoint answered but rejected the file.
func NewUploadError(message, details string, cause error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeUploadFailed,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	e.Retryable = IsRetryable(e)
	return e
}

// NewRenderError describes a failed render attempt.
func NewRenderError(message, details string, cause error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeRenderFailed,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	e.Retryable = IsRetryable(e)
	return e
}

// NewInvalidResponseError is returned when an upstream answered with a body
// that does not match its contract.
func NewInvalidResponseError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidResponse,
		Message:   fmt.Sprintf("invalid response from %s", service),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps anything unexpected.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// CodeOf returns the code of the first StandardError in err's chain, or
// INTERNAL_ERROR when there is none.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "UPLOAD"):
		return "UPLOAD"
	case strings.Contains(codeStr, "RENDER"), strings.Contains(codeStr, "RESPONSE"):
		return "RENDER"
	default:
		return "OTHER"
	}
}
