// Package workflow ties the admission components into one session per
// application attempt.
package workflow

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"parent-portal/internal/admission/draft"
	"parent-portal/internal/admission/formstate"
	"parent-portal/internal/admission/sequencer"
	"parent-portal/internal/admission/submission"
	"parent-portal/internal/admission/validator"
	"parent-portal/internal/common/errors"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/common/metrics"
	"parent-portal/internal/common/observability"
	"parent-portal/internal/models"
	"parent-portal/internal/notify"
	"parent-portal/internal/storage/kv"

	"github.com/google/uuid"
)

var (
	// ErrNotReady is returned when Submit is called before the review section.
	ErrNotReady = stderrors.New("the application must be reviewed before it is submitted")

	ErrNoSubmitter = stderrors.New("workflow: no submitter configured")
)

type Deps struct {
	KV    kv.Store
	Draft draft.Config

	// optional; a session without a Submitter can edit and save drafts only
	Submitter submission.Submitter
	Validator *validator.Validator
	Notifier  notify.Notifier
	Recorder  observability.Recorder
	Logger    logger.Logger
}

type Session struct {
	id        string
	store     *formstate.Store
	validator *validator.Validator
	agent     *draft.Agent
	seq       *sequencer.Sequencer
	submitter submission.Submitter
	notifier  notify.Notifier
	recorder  observability.Recorder
	logger    logger.Logger

	unsubscribe func()
	submitting  atomic.Bool
}

// Start restores any saved draft and returns a session positioned on the
// student section.
func Start(ctx context.Context, deps Deps) (*Session, error) {
	if deps.KV == nil {
		return nil, fmt.Errorf("workflow: draft storage is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	v := deps.Validator
	if v == nil {
		v = validator.New()
	}

	id := uuid.NewString()
	log = log.WithFields(map[string]interface{}{"sessionId": id})

	store := formstate.New(log)
	agent := draft.NewAgent(deps.KV, store, deps.Draft, log)
	store.Load(agent.LoadDraft(ctx))

	s := &Session{
		id:        id,
		store:     store,
		validator: v,
		agent:     agent,
		submitter: deps.Submitter,
		notifier:  deps.Notifier,
		recorder:  deps.Recorder,
		logger:    log.WithFields(map[string]interface{}{"component": "workflow"}),
	}
	s.seq = sequencer.New(s.validateSection)
	s.unsubscribe = store.Subscribe(agent.Notify)

	s.logger.Info("admission session started", nil)
	return s, nil
}

func (s *Session) ID() string                          { return s.id }
func (s *Session) Store() *formstate.Store             { return s.store }
func (s *Session) Current() models.Section             { return s.seq.Current() }
func (s *Session) DraftStatus() draft.Status           { return s.agent.Status() }
func (s *Session) OnDraftStatus(fn func(draft.Status)) { s.agent.OnStatus(fn) }

func (s *Session) validateSection(section models.Section) (models.ValidationErrorMap, error) {
	return s.validator.ValidateRecord(section, s.store.Snapshot())
}

func (s *Session) GetValue(path string) (any, bool) {
	return s.store.GetValue(path)
}

// SetValue writes a field. Once a section has shown errors its fields are
// re-validated on every change. Edits are refused while a submission is in flight.
func (s *Session) SetValue(path string, value any) error {
	if s.submitting.Load() {
		return errors.NewSubmissionInProgressError()
	}
	if err := s.store.SetValue(path, value); err != nil {
		return err
	}
	section, ok := models.SectionForPath(path)
	if !ok || !s.store.HasSectionErrors(section) {
		return nil
	}
	errs, err := s.validateSection(section)
	if err != nil {
		return err
	}
	s.store.SetSectionErrors(section, errs)
	return nil
}

// Load replaces the record without scheduling a save, as Start does for a
// restored draft.
func (s *Session) Load(record models.ApplicationRecord) {
	s.store.Load(record)
}

// Flush writes the draft now instead of waiting for the debounce.
func (s *Session) Flush(ctx context.Context) error {
	return s.agent.Flush(ctx)
}

func (s *Session) SetTouched(path string) {
	s.store.SetTouched(path)
}

// Next validates the current section and moves on when it is valid. The
// returned map holds the errors that blocked the move.
func (s *Session) Next(ctx context.Context) (models.Section, models.ValidationErrorMap, error) {
	current := s.seq.Current()
	if s.submitting.Load() {
		return current, nil, errors.NewSubmissionInProgressError()
	}
	next, errs, err := s.seq.Advance(current)
	if err != nil {
		return current, nil, err
	}

	if len(models.SectionRoots(current)) > 0 {
		s.store.SetSectionErrors(current, errs)
	}
	outcome := "advanced"
	if !errs.Empty() {
		outcome = "blocked"
		s.store.TouchSection(current)
	}
	s.recordAdvance(ctx, current, outcome)
	s.logger.Debug("section advance", map[string]interface{}{
		"section": string(current),
		"outcome": outcome,
		"errors":  len(errs),
	})
	return next, errs, nil
}

// JumpTo moves to any section without validation.
func (s *Session) JumpTo(section models.Section) error {
	if s.submitting.Load() {
		return errors.NewSubmissionInProgressError()
	}
	return s.seq.JumpTo(section)
}

func (s *Session) Visited(section models.Section) bool {
	return s.seq.Visited(section)
}

func (s *Session) IsSubmitting() bool {
	return s.submitting.Load()
}

// Submit sends the application. The record is only cleared, together with
// the saved draft, once the server accepted it.
func (s *Session) Submit(ctx context.Context) (*submission.Receipt, error) {
	if s.submitter == nil {
		return nil, ErrNoSubmitter
	}
	if !s.submitting.CompareAndSwap(false, true) {
		return nil, errors.NewSubmissionInProgressError()
	}
	defer s.submitting.Store(false)

	if cur := s.seq.Current(); cur != models.SectionReview && cur != models.SectionSubmit {
		return nil, fmt.Errorf("%w (at %s)", ErrNotReady, cur)
	}

	record := s.store.Snapshot()
	all, err := s.validator.ValidateAll(record)
	if err != nil {
		return nil, err
	}
	if !all.Empty() {
		first := s.showErrors(all)
		_ = s.seq.JumpTo(first)
		s.logger.Warn("submission blocked by validation", map[string]interface{}{
			"section": string(first),
			"errors":  len(all),
		})
		return nil, errors.NewFieldValidationError(string(first), all)
	}

	metrics.SubmissionsActive.Inc()
	start := time.Now()
	receipt, err := s.submitter.Submit(ctx, record)
	metrics.SubmissionsActive.Dec()

	result := submissionResult(err)
	metrics.Submissions.WithLabelValues(result).Inc()
	if s.recorder != nil {
		s.recorder.RecordSubmission(ctx, time.Since(start), result)
	}

	if err != nil {
		fields := map[string]interface{}{"result": result, "error": err}
		if se, ok := errors.AsStandard(err); ok {
			fields["errorCode"] = string(se.Code)
			fields["retryable"] = se.Retryable
		}
		s.logger.Error("submission failed, record kept", fields)
		return nil, err
	}

	// reset first: the reset notifies the agent, and clearing cancels that save
	s.store.ResetToInitial()
	s.agent.ClearDraft(ctx)
	s.seq.Reset()

	s.logger.Info("application submitted", map[string]interface{}{
		"applicationId": receipt.ApplicationID,
		"durationMs":    time.Since(start).Milliseconds(),
	})

	if s.notifier != nil {
		s.notifier.NotifySubmitted(ctx, record, receipt.ApplicationID, receipt.Reference)
	}
	return receipt, nil
}

// Close stops background saving. The session must not be used afterwards.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.agent.Close()
	s.logger.Debug("admission session closed", nil)
}

// showErrors writes errs into the store section by section and returns the
// first section in order that has any.
func (s *Session) showErrors(errs models.ValidationErrorMap) models.Section {
	bySection := make(map[models.Section]models.ValidationErrorMap)
	for path, msg := range errs {
		sec, ok := models.SectionForPath(path)
		if !ok {
			continue
		}
		if bySection[sec] == nil {
			bySection[sec] = make(models.ValidationErrorMap)
		}
		bySection[sec][path] = msg
	}

	first := models.SectionReview
	for _, sec := range models.ValidatedSections() {
		s.store.SetSectionErrors(sec, bySection[sec])
		if len(bySection[sec]) > 0 {
			s.store.TouchSection(sec)
			if first == models.SectionReview {
				first = sec
			}
		}
	}
	return first
}

func (s *Session) recordAdvance(ctx context.Context, section models.Section, outcome string) {
	metrics.SectionAdvances.WithLabelValues(string(section), outcome).Inc()
	if s.recorder != nil {
		s.recorder.RecordSectionAdvance(ctx, string(section), outcome)
	}
}

func submissionResult(err error) string {
	if err == nil {
		return "success"
	}
	if stderrors.Is(err, errors.ErrSessionExpired) {
		return "session_expired"
	}
	if se, ok := errors.AsStandard(err); ok && se.Code == errors.ErrCodeSubmissionTimeout {
		return "timeout"
	}
	return "failed"
}
