// Package draft persists the in-progress admission record in the background
// so a parent can leave the form and resume later.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	apperrors "parent-portal/internal/common/errors"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/common/metrics"
	"parent-portal/internal/common/validation"
	"parent-portal/internal/models"
	"parent-portal/internal/storage/kv"
)

const (
	DefaultKey         = "admission_form_draft"
	DefaultDebounce    = 2 * time.Second
	DefaultStatusHold  = 3 * time.Second
	DefaultSaveTimeout = 5 * time.Second
)

// ErrRecordHasErrors is returned by Flush while validation errors are outstanding.
var ErrRecordHasErrors = errors.New("draft not saved: the form has validation errors")

// Source is the part of the form state the agent reads.
type Source interface {
	Snapshot() models.ApplicationRecord
	HasErrors() bool
}

type Config struct {
	Key         string
	Debounce    time.Duration
	StatusHold  time.Duration
	SaveTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Key == "" {
		c.Key = DefaultKey
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.StatusHold <= 0 {
		c.StatusHold = DefaultStatusHold
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = DefaultSaveTimeout
	}
}

// Agent debounces change notifications into draft writes. Writes are
// serialised and always carry the record as it was when the write started.
type Agent struct {
	store  kv.Store
	source Source
	cfg    Config
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	timer      *time.Timer
	holdTimer  *time.Timer
	gen        uint64 // bumped by every change, clear and flush
	clearedGen uint64
	status     Status
	closed     bool
	listeners  []func(Status)

	saveMu   sync.Mutex
	savedGen uint64
}

func NewAgent(store kv.Store, source Source, cfg Config, log logger.Logger) *Agent {
	cfg.applyDefaults()
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		store:  store,
		source: source,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "draft", "key": cfg.Key}),
		ctx:    ctx,
		cancel: cancel,
		status: Status{State: StateIdle},
	}
}

// Notify records a change and (re)arms the debounce timer. Its signature
// matches formstate.Listener.
func (a *Agent) Notify(path string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.cfg.Debounce, func() { a.fire(gen) })
	a.mu.Unlock()

	a.transition(Status{State: StatePending})
}

func (a *Agent) fire(gen uint64) {
	a.mu.Lock()
	if a.closed || gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	if err := a.save(gen); err != nil && !errors.Is(err, ErrRecordHasErrors) && !errors.Is(err, errStale) {
		a.logger.Warn("draft save failed", map[string]interface{}{"error": err})
	}
}

// Flush saves immediately, cancelling any pending debounce.
func (a *Agent) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errClosed
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	return a.saveWith(ctx, gen)
}

var (
	errStale  = errors.New("draft superseded")
	errClosed = errors.New("draft agent closed")
)

func (a *Agent) save(gen uint64) error {
	return a.saveWith(a.ctx, gen)
}

func (a *Agent) saveWith(parent context.Context, gen uint64) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	closed, cleared := a.closed, a.clearedGen
	a.mu.Unlock()
	if closed {
		return errClosed
	}
	if gen <= cleared || gen < a.savedGen {
		metrics.DraftSaves.WithLabelValues("skipped").Inc()
		return errStale
	}

	if a.source.HasErrors() {
		metrics.DraftSaves.WithLabelValues("skipped").Inc()
		a.logger.Debug("draft save skipped, form has errors", nil)
		a.transitionUnlessSuperseded(gen, Status{State: StateIdle})
		return ErrRecordHasErrors
	}

	a.transition(Status{State: StateSaving})

	snap := models.DraftSnapshot{
		Record:  a.source.Snapshot(),
		SavedAt: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return a.fail(apperrors.NewDraftSaveFailedError(err))
	}

	ctx, cancel := context.WithTimeout(parent, a.cfg.SaveTimeout)
	defer cancel()
	stop := context.AfterFunc(a.ctx, cancel)
	defer stop()

	start := time.Now()
	err = a.store.Set(ctx, a.cfg.Key, string(payload))
	metrics.DraftSaveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return a.fail(apperrors.NewDraftSaveFailedError(err))
	}

	a.savedGen = gen
	metrics.DraftSaves.WithLabelValues("saved").Inc()
	a.logger.Debug("draft saved", map[string]interface{}{"bytes": len(payload)})

	// a change that arrived mid-write keeps the indicator on Pending
	if a.superseded(gen) {
		return nil
	}
	savedAt, _ := time.Parse(time.RFC3339, snap.SavedAt)
	a.transition(Status{State: StateSaved, SavedAt: savedAt})
	a.holdThenIdle(StateSaved)
	return nil
}

func (a *Agent) superseded(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen != gen
}

func (a *Agent) fail(err *apperrors.StandardError) error {
	metrics.DraftSaves.WithLabelValues("failed").Inc()
	a.transition(Status{State: StateFailed, Message: err.Message})
	a.holdThenIdle(StateFailed)
	return err
}

// holdThenIdle returns to Idle after StatusHold unless the state moved on.
func (a *Agent) holdThenIdle(from State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.holdTimer != nil {
		a.holdTimer.Stop()
	}
	a.holdTimer = time.AfterFunc(a.cfg.StatusHold, func() {
		a.transitionIf(from, Status{State: StateIdle})
	})
}

// LoadDraft returns the saved record or, on any problem, the empty record.
func (a *Agent) LoadDraft(ctx context.Context) models.ApplicationRecord {
	raw, found, err := a.store.Get(ctx, a.cfg.Key)
	if err != nil {
		loadErr := apperrors.NewDraftLoadFailedError(err)
		a.logger.Warn("draft load failed, starting empty", map[string]interface{}{
			"errorCode": string(loadErr.Code),
			"error":     err,
		})
		return models.NewApplicationRecord()
	}
	if !found {
		return models.NewApplicationRecord()
	}

	res, err := validation.ValidateDraftSnapshot([]byte(raw))
	if err != nil || !res.Valid {
		fields := map[string]interface{}{}
		if err != nil {
			fields["error"] = err
		} else {
			fields["problems"] = res.GetErrorMessages()
		}
		a.logger.Warn("stored draft is malformed, starting empty", fields)
		return models.NewApplicationRecord()
	}

	snap := models.DraftSnapshot{Record: models.NewApplicationRecord()}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		a.logger.Warn("stored draft is undecodable, starting empty", map[string]interface{}{"error": err})
		return models.NewApplicationRecord()
	}
	a.logger.Info("draft restored", map[string]interface{}{"savedAt": snap.SavedAt})
	return snap.Record
}

// ClearDraft drops any pending save and removes the stored draft. Failures are logged.
func (a *Agent) ClearDraft(ctx context.Context) {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	a.clearedGen = a.gen
	a.mu.Unlock()

	// wait for an in-flight write so it cannot land after the removal
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	if err := a.store.Remove(ctx, a.cfg.Key); err != nil {
		a.logger.Warn("draft clear failed", map[string]interface{}{"error": err})
	}
	a.transition(Status{State: StateIdle})
}

// Close stops timers and aborts an in-flight write. Nothing is written after Close returns.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	if a.holdTimer != nil {
		a.holdTimer.Stop()
	}
	a.mu.Unlock()

	a.cancel()

	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	a.logger.Debug("draft agent closed", nil)
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// OnStatus registers fn for every state transition.
func (a *Agent) OnStatus(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

func (a *Agent) transition(st Status) {
	a.mu.Lock()
	a.status = st
	ls := make([]func(Status), len(a.listeners))
	copy(ls, a.listeners)
	a.mu.Unlock()

	for _, fn := range ls {
		fn(st)
	}
}

// transitionUnlessSuperseded leaves the status alone when a newer change is
// already pending.
func (a *Agent) transitionUnlessSuperseded(gen uint64, st Status) {
	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return
	}
	a.status = st
	ls := make([]func(Status), len(a.listeners))
	copy(ls, a.listeners)
	a.mu.Unlock()

	for _, fn := range ls {
		fn(st)
	}
}

func (a *Agent) transitionIf(from State, st Status) {
	a.mu.Lock()
	if a.closed || a.status.State != from {
		a.mu.Unlock()
		return
	}
	a.status = st
	ls := make([]func(Status), len(a.listeners))
	copy(ls, a.listeners)
	a.mu.Unlock()

	for _, fn := range ls {
		fn(st)
	}
}
