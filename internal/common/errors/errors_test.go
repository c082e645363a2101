package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	msgs []string
}

func (r *recordingLogger) Error(msg string, _ map[string]interface{}) {
	r.msgs = append(r.msgs, msg)
}

func TestSentinels_MatchByCode(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewSessionExpiredError("401"))

	assert.ErrorIs(t, wrapped, ErrSessionExpired)
	assert.NotErrorIs(t, wrapped, ErrSubmissionFailed)
}

func TestNewSubmissionFailedError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{422, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(NewSubmissionFailedError(tt.status, nil)))
		})
	}
}

func TestUserMessage_HidesRawErrors(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(stderrors.New("dial tcp 10.0.0.1:443: connection refused")))
	assert.Equal(t, "Your session has expired. Please sign in again.", UserMessage(NewSessionExpiredError("token revoked")))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeFieldValidationFailed))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeDraftSaveFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeSessionExpired))
	assert.Equal(t, "SUBMISSION", GetErrorCategory(ErrCodeSubmissionTimeout))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}

func TestErrorHandler_Handle(t *testing.T) {
	fields := map[string]string{"documents.file2": "Passport photograph is required"}

	tests := []struct {
		name       string
		err        error
		wantCode   ErrorCode
		wantAction Action
	}{
		{"session expired", NewSessionExpiredError("401"), ErrCodeSessionExpired, ActionSignIn},
		{"invalid fields", NewFieldValidationError("documents", fields), ErrCodeFieldValidationFailed, ActionFixFields},
		{"in progress", NewSubmissionInProgressError(), ErrCodeSubmissionInProgress, ActionWait},
		{"server error", NewSubmissionFailedError(502, nil), ErrCodeSubmissionFailed, ActionRetry},
		{"rejected", NewSubmissionFailedError(400, nil), ErrCodeSubmissionFailed, ActionNone},
		{"deadline", context.DeadlineExceeded, ErrCodeSubmissionTimeout, ActionRetry},
		{"unknown", stderrors.New("boom"), "INTERNAL_ERROR", ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			out := NewErrorHandler(log).Handle(tt.err)

			assert.Equal(t, tt.wantCode, out.Code)
			assert.Equal(t, tt.wantAction, out.Action)
			assert.NotEmpty(t, out.Message)
			require.Len(t, log.msgs, 1)
		})
	}
}

func TestErrorHandler_CarriesFields(t *testing.T) {
	fields := map[string]string{"student.surName": "Surname is required"}
	out := NewErrorHandler(nil).Handle(NewFieldValidationError("student", fields))

	assert.Equal(t, fields, out.Fields)
}

func TestErrorHandler_Nil(t *testing.T) {
	assert.Equal(t, ActionNone, NewErrorHandler(nil).Handle(nil).Action)
}
