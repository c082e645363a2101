// internal/common/errors/handler.go
package errors

import (
	"context"
	stderrors "errors"
	"time"
)

// Action tells the caller what the parent should be offered next.
type Action string

const (
	ActionNone      Action = "none"
	ActionRetry     Action = "retry"
	ActionSignIn    Action = "sign_in"
	ActionFixFields Action = "fix_fields"
	ActionWait      Action = "wait"
)

// Outcome is the user-facing resolution of an error.
type Outcome struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Action  Action            `json:"action"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorHandler converts errors at the service boundary into user-facing outcomes.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs the error with its raw details and returns what may be shown.
func (h *ErrorHandler) Handle(err error) Outcome {
	if err == nil {
		return Outcome{Action: ActionNone}
	}
	stdErr := h.normalizeError(err)
	out := Outcome{
		Code:    stdErr.Code,
		Message: stdErr.Message,
		Action:  actionFor(stdErr),
	}
	if fields, ok := stdErr.Metadata["fields"].(map[string]string); ok {
		out.Fields = fields
	}
	h.logError(stdErr)
	return out
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewSubmissionTimeoutError(err)
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Something went wrong. Please try again.",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func actionFor(e *StandardError) Action {
	switch e.Code {
	case ErrCodeSessionExpired:
		return ActionSignIn
	case ErrCodeFieldValidationFailed, ErrCodeFileValidationFailed, ErrCodeAuthenticationFailed:
		return ActionFixFields
	case ErrCodeSubmissionInProgress:
		return ActionWait
	}
	if e.Retryable {
		return ActionRetry
	}
	return ActionNone
}

func (h *ErrorHandler) logError(stdErr *StandardError) {
	if h.logger == nil {
		return
	}
	h.logger.Error("request failed", map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	})
}
