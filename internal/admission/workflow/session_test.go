package workflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"parent-portal/internal/admission/admissiontest"
	"parent-portal/internal/admission/draft"
	"parent-portal/internal/admission/submission"
	apperrors "parent-portal/internal/common/errors"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/common/metrics"
	"parent-portal/internal/models"
	"parent-portal/internal/storage/kv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===== Test Helper Functions =====

const testKey = "test_admission_draft"

type MockSubmitter struct {
	mock.Mock
	release chan struct{}
}

func (m *MockSubmitter) Submit(ctx context.Context, record models.ApplicationRecord) (*submission.Receipt, error) {
	args := m.Called(ctx, record)
	if m.release != nil {
		<-m.release
	}
	receipt, _ := args.Get(0).(*submission.Receipt)
	return receipt, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySubmitted(ctx context.Context, record models.ApplicationRecord, applicationID, reference string) []models.Notification {
	args := m.Called(ctx, record, applicationID, reference)
	out, _ := args.Get(0).([]models.Notification)
	return out
}

func seedDraft(t *testing.T, store kv.Store, record models.ApplicationRecord) {
	t.Helper()
	raw, err := json.Marshal(models.DraftSnapshot{
		Record:  record,
		SavedAt: time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), testKey, string(raw)))
}

func startSession(t *testing.T, store kv.Store, sub submission.Submitter) *Session {
	t.Helper()
	s, err := Start(context.Background(), Deps{
		KV:        store,
		Submitter: sub,
		Draft: draft.Config{
			Key:        testKey,
			Debounce:   20 * time.Millisecond,
			StatusHold: 40 * time.Millisecond,
		},
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func advanceToReview(t *testing.T, s *Session) {
	t.Helper()
	for s.Current() != models.SectionReview {
		_, errs, err := s.Next(context.Background())
		require.NoError(t, err)
		require.Empty(t, errs, "blocked at %s", s.Current())
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func draftExists(t *testing.T, store kv.Store) bool {
	t.Helper()
	_, found, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	return found
}

// ===== Start =====

func TestStart_RestoresDraft(t *testing.T) {
	mem := kv.NewMemoryStore()
	seedDraft(t, mem, admissiontest.ValidRecord())

	s := startSession(t, mem, &MockSubmitter{})

	v, ok := s.GetValue("student.firstName")
	require.True(t, ok)
	assert.Equal(t, "Chidera", v)
	assert.Equal(t, models.SectionStudent, s.Current())
	assert.NotEmpty(t, s.ID())
}

func TestStart_RequiresDependencies(t *testing.T) {
	_, err := Start(context.Background(), Deps{Submitter: &MockSubmitter{}})
	assert.Error(t, err)
}

func TestSubmit_WithoutSubmitter(t *testing.T) {
	s := startSession(t, kv.NewMemoryStore(), nil)
	require.NoError(t, s.JumpTo(models.SectionReview))

	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoSubmitter)
}

// ===== Navigation =====

func TestNext_BlockedShowsErrors(t *testing.T) {
	s := startSession(t, kv.NewMemoryStore(), &MockSubmitter{})

	next, errs, err := s.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.SectionStudent, next)
	assert.Contains(t, errs, "student.surName")
	assert.Contains(t, errs, "student.firstName")
	msg, visible := s.Store().VisibleError("student.surName")
	assert.True(t, visible)
	assert.Equal(t, errs["student.surName"], msg)
	assert.False(t, s.Visited(models.SectionStudent))
}

func TestNext_CountsAdvanceOnce(t *testing.T) {
	s := startSession(t, kv.NewMemoryStore(), &MockSubmitter{})
	blocked := metrics.SectionAdvances.WithLabelValues(string(models.SectionStudent), "blocked")
	before := counterValue(t, blocked)

	_, _, err := s.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before+1, counterValue(t, blocked))
}

func TestSetValue_RevalidatesSectionWithErrors(t *testing.T) {
	s := startSession(t, kv.NewMemoryStore(), &MockSubmitter{})

	_, errs, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Contains(t, errs, "student.surName")

	require.NoError(t, s.SetValue("student.surName", "Okafor"))

	_, stillThere := s.Store().FieldError("student.surName")
	assert.False(t, stillThere)
	_, other := s.Store().FieldError("student.firstName")
	assert.True(t, other)
}

func TestSetValue_UnknownPath(t *testing.T) {
	s := startSession(t, kv.NewMemoryStore(), &MockSubmitter{})
	assert.Error(t, s.SetValue("student.nickname", "Chi"))
}

func TestNext_WalksValidRecordToReview(t *testing.T) {
	mem := kv.NewMemoryStore()
	seedDraft(t, mem, admissiontest.ValidRecord())
	s := startSession(t, mem, &MockSubmitter{})

	advanceToReview(t, s)

	assert.True(t, s.Visited(models.SectionDocuments))
	assert.False(t, s.Store().HasErrors())
}

func TestJumpTo_FromReview(t *testing.T) {
	mem := kv.NewMemoryStore()
	seedDraft(t, mem, admissiontest.ValidRecord())
	s := startSession(t, mem, &MockSubmitter{})
	advanceToReview(t, s)

	require.NoError(t, s.JumpTo(models.SectionParent))
	assert.Equal(t, models.SectionParent, s.Current())
	assert.Error(t, s.JumpTo(models.SectionSubmit))
}

// ===== Draft saving =====

func TestSetValue_SavesDraftAfterDebounce(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := startSession(t, mem, &MockSubmitter{})

	require.NoError(t, s.SetValue("student.surName", "Okafor"))

	require.Eventually(t, func() bool { return draftExists(t, mem) }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.DraftStatus().State != draft.StatePending }, time.Second, 5*time.Millisecond)
}

func TestClose_StopsPendingSave(t *testing.T) {
	mem := kv.NewMemoryStore()
	s := startSession(t, mem, &MockSubmitter{})

	require.NoError(t, s.SetValue("student.surName", "Okafor"))
	s.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, mem.Writes())
}

// ===== Submit =====

func TestSubmit_SuccessClearsDraftAndForm(t *testing.T) {
	mem := kv.NewMemoryStore()
	record := admissiontest.ValidRecord()
	seedDraft(t, mem, record)

	sub := &MockSubmitter{}
	sub.On("Submit", mock.Anything, record).
		Return(&submission.Receipt{ApplicationID: "APP-1", Reference: "REF-1", StatusCode: 201}, nil).Once()

	s := startSession(t, mem, sub)
	advanceToReview(t, s)

	receipt, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "APP-1", receipt.ApplicationID)

	assert.False(t, draftExists(t, mem))
	assert.Equal(t, models.NewApplicationRecord(), s.Store().Snapshot())
	assert.Equal(t, models.SectionStudent, s.Current())
	assert.False(t, s.IsSubmitting())

	// the reset must not bring the draft back
	time.Sleep(100 * time.Millisecond)
	assert.False(t, draftExists(t, mem))
	sub.AssertExpectations(t)
}

func TestSubmit_NotifiesAfterSuccess(t *testing.T) {
	mem := kv.NewMemoryStore()
	record := admissiontest.ValidRecord()
	seedDraft(t, mem, record)

	sub := &MockSubmitter{}
	sub.On("Submit", mock.Anything, record).
		Return(&submission.Receipt{ApplicationID: "APP-2", Reference: "REF-2"}, nil)
	notifier := &MockNotifier{}
	notifier.On("NotifySubmitted", mock.Anything, record, "APP-2", "REF-2").
		Return([]models.Notification(nil)).Once()

	s, err := Start(context.Background(), Deps{
		KV:        mem,
		Submitter: sub,
		Notifier:  notifier,
		Draft:     draft.Config{Key: testKey, Debounce: 20 * time.Millisecond},
		Logger:    logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	advanceToReview(t, s)

	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestSubmit_MissingPassportNeverCallsServer(t *testing.T) {
	mem := kv.NewMemoryStore()
	record := admissiontest.ValidRecord()
	record.Documents.File2 = nil
	seedDraft(t, mem, record)

	sub := &MockSubmitter{}
	s := startSession(t, mem, sub)
	require.NoError(t, s.JumpTo(models.SectionReview))

	_, err := s.Submit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFieldValidation)

	msg, ok := s.Store().FieldError("documents.file2")
	assert.True(t, ok)
	assert.NotEmpty(t, msg)
	assert.Equal(t, models.SectionDocuments, s.Current())
	sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	assert.True(t, draftExists(t, mem))
}

func TestSubmit_BeforeReview(t *testing.T) {
	s := startSession(t, kv.NewMemoryStore(), &MockSubmitter{})

	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSubmit_FailureKeepsRecord(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "server error",
			err:     apperrors.NewSubmissionFailedError(500, nil),
			wantErr: apperrors.ErrSubmissionFailed,
		},
		{
			name:    "session expired",
			err:     apperrors.NewSessionExpiredError("401"),
			wantErr: apperrors.ErrSessionExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := kv.NewMemoryStore()
			record := admissiontest.ValidRecord()
			seedDraft(t, mem, record)

			sub := &MockSubmitter{}
			sub.On("Submit", mock.Anything, record).Return(nil, tt.err)

			s := startSession(t, mem, sub)
			advanceToReview(t, s)

			receipt, err := s.Submit(context.Background())
			assert.Nil(t, receipt)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, record, s.Store().Snapshot())
			assert.Equal(t, models.SectionReview, s.Current())
			assert.True(t, draftExists(t, mem))
		})
	}
}

func TestSubmit_RejectsDuplicate(t *testing.T) {
	mem := kv.NewMemoryStore()
	record := admissiontest.ValidRecord()
	seedDraft(t, mem, record)

	sub := &MockSubmitter{release: make(chan struct{})}
	sub.On("Submit", mock.Anything, record).
		Return(&submission.Receipt{ApplicationID: "APP-3"}, nil).Once()

	s := startSession(t, mem, sub)
	advanceToReview(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, s.IsSubmitting, time.Second, 5*time.Millisecond)
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSubmissionInProgress)

	close(sub.release)
	require.NoError(t, <-done)
	sub.AssertNumberOfCalls(t, "Submit", 1)
}

func TestSession_EditingBlockedWhileSubmitting(t *testing.T) {
	mem := kv.NewMemoryStore()
	record := admissiontest.ValidRecord()
	seedDraft(t, mem, record)

	sub := &MockSubmitter{release: make(chan struct{})}
	sub.On("Submit", mock.Anything, record).
		Return(&submission.Receipt{ApplicationID: "APP-4"}, nil).Once()

	s := startSession(t, mem, sub)
	advanceToReview(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	require.Eventually(t, s.IsSubmitting, time.Second, 5*time.Millisecond)

	section, errs, err := s.Next(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSubmissionInProgress)
	assert.Equal(t, models.SectionReview, section)
	assert.Nil(t, errs)
	assert.ErrorIs(t, s.JumpTo(models.SectionStudent), apperrors.ErrSubmissionInProgress)
	assert.ErrorIs(t, s.SetValue("student.surName", "Changed"), apperrors.ErrSubmissionInProgress)
	assert.Equal(t, models.SectionReview, s.Current())

	close(sub.release)
	require.NoError(t, <-done)
	sub.AssertExpectations(t)
}

// ===== End to end =====

func TestSession_FillStudentThenAdvance(t *testing.T) {
	s := startSession(t, kv.NewMemoryStore(), &MockSubmitter{})
	student := admissiontest.ValidRecord().Student

	for path, v := range map[string]any{
		"student.surName":                    student.SurName,
		"student.firstName":                  student.FirstName,
		"student.dateOfBirth":                student.DateOfBirth,
		"student.gender":                     student.Gender,
		"student.nationality":                student.Nationality,
		"student.stateOfOrigin":              student.StateOfOrigin,
		"student.residentialAddress.street":  student.ResidentialAddress.Street,
		"student.residentialAddress.city":    student.ResidentialAddress.City,
		"student.residentialAddress.state":   student.ResidentialAddress.State,
		"student.residentialAddress.country": student.ResidentialAddress.Country,
	} {
		require.NoError(t, s.SetValue(path, v), path)
	}

	next, errs, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, models.SectionParent, next)
}

func TestSession_MissingPassportBlocksReview(t *testing.T) {
	mem := kv.NewMemoryStore()
	record := admissiontest.ValidRecord()
	record.Documents.File2 = nil
	seedDraft(t, mem, record)

	sub := &MockSubmitter{}
	s := startSession(t, mem, sub)

	for i := 0; i < 3; i++ {
		_, errs, err := s.Next(context.Background())
		require.NoError(t, err)
		require.Empty(t, errs)
	}
	require.Equal(t, models.SectionDocuments, s.Current())

	next, errs, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SectionDocuments, next)
	assert.Contains(t, errs, "documents.file2")

	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}
