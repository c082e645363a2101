// Package errors provides the standardized error taxonomy of the parent portal.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeFieldValidationFailed ErrorCode = "FIELD_VALIDATION_FAILED"
	ErrCodeFileValidationFailed  ErrorCode = "FILE_VALIDATION_FAILED"

	ErrCodeDraftSaveFailed    ErrorCode = "DRAFT_SAVE_FAILED"
	ErrCodeDraftLoadFailed    ErrorCode = "DRAFT_LOAD_FAILED"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	ErrCodeSessionExpired       ErrorCode = "SESSION_EXPIRED"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"

	ErrCodeSubmissionFailed     ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSubmissionInProgress ErrorCode = "SUBMISSION_IN_PROGRESS"
	ErrCodeSubmissionTimeout    ErrorCode = "SUBMISSION_TIMEOUT"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured portal error. Message is safe to show
// to a parent; Details holds the raw cause and is only logged.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so sentinel values work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key to the error and returns it.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is checks.
var (
	ErrSessionExpired       = &StandardError{Code: ErrCodeSessionExpired}
	ErrSubmissionFailed     = &StandardError{Code: ErrCodeSubmissionFailed}
	ErrSubmissionInProgress = &StandardError{Code: ErrCodeSubmissionInProgress}
	ErrFieldValidation      = &StandardError{Code: ErrCodeFieldValidationFailed}
	ErrFileValidation       = &StandardError{Code: ErrCodeFileValidationFailed}
	ErrDraftSave            = &StandardError{Code: ErrCodeDraftSaveFailed}
	ErrStorageUnavailable   = &StandardError{Code: ErrCodeStorageUnavailable}
	ErrAuthentication       = &StandardError{Code: ErrCodeAuthenticationFailed}
)

// ==========================
// 2. Error Constructors
// ==========================

func details(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewFieldValidationError reports invalid fields in a section.
func NewFieldValidationError(section string, fields map[string]string) *StandardError {
	e := &StandardError{
		Code:      ErrCodeFieldValidationFailed,
		Message:   "Some fields need your attention",
		Details:   fmt.Sprintf("section: %s, invalid fields: %d", section, len(fields)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
	return e.WithMetadata("section", section).WithMetadata("fields", fields)
}

// NewFileValidationError reports a rejected document upload.
func NewFileValidationError(field, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFileValidationFailed,
		Message:   "Please upload a PDF, JPEG or PNG file",
		Details:   fmt.Sprintf("field: %s, reason: %s", field, reason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDraftSaveFailedError is transient and never fatal to the workflow.
func NewDraftSaveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftSaveFailed,
		Message:   "Your progress could not be saved. You can keep editing.",
		Details:   details(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDraftLoadFailedError is logged only; loading falls back to an empty form.
func NewDraftLoadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftLoadFailed,
		Message:   "Saved progress could not be restored",
		Details:   details(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStorageUnavailableError wraps a key-value backend failure.
func NewStorageUnavailableError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   "Device storage is unavailable",
		Details:   fmt.Sprintf("op: %s, error: %s", op, details(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSessionExpiredError means the parent must sign in again.
func NewSessionExpiredError(detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionExpired,
		Message:   "Your session has expired. Please sign in again.",
		Details:   detail,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError reports rejected credentials.
func NewAuthenticationError(detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationFailed,
		Message:   "Incorrect email or password",
		Details:   detail,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionFailedError keeps the entered data; the parent may retry.
func NewSubmissionFailedError(status int, err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   "We could not submit your application. Please try again.",
		Details:   details(err),
		Retryable: status == 0 || status >= 500 || status == 429,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	if status != 0 {
		e.WithMetadata("status", status)
	}
	return e
}

// NewSubmissionTimeoutError is a retryable network timeout.
func NewSubmissionTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionTimeout,
		Message:   "The school server took too long to respond. Please try again.",
		Details:   details(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSubmissionInProgressError rejects a duplicate submit.
func NewSubmissionInProgressError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInProgress,
		Message:   "Your application is already being submitted",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError is logged only.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Receipt delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, details(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// UserMessage returns the text a parent may see. Raw transport errors are never returned.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := AsStandard(err); ok && se.Message != "" {
		return se.Message
	}
	return "Something went wrong. Please try again."
}

// IsRetryable reports whether the error advertises a retry.
func IsRetryable(err error) bool {
	se, ok := AsStandard(err)
	return ok && se.Retryable
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DRAFT") || strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "AUTHENTICATION"):
		return "AUTH"
	case strings.Contains(codeStr, "SUBMISSION"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
