package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"parent-portal/internal/admission/formstate"
	apperrors "parent-portal/internal/common/errors"
	"parent-portal/internal/common/logger"
	"parent-portal/internal/models"
	"parent-portal/internal/storage/kv"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Test Helper Functions =====

const (
	testDebounce = 20 * time.Millisecond
	testHold     = 40 * time.Millisecond
	waitFor      = time.Second
	tick         = 5 * time.Millisecond
)

type brokenStore struct {
	err error
}

func (b brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, b.err }
func (b brokenStore) Set(context.Context, string, string) error         { return b.err }
func (b brokenStore) Remove(context.Context, string) error              { return b.err }

type statusLog struct {
	mu     sync.Mutex
	states []State
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s.State)
}

func (l *statusLog) snapshot() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newTestAgent(t *testing.T, store kv.Store) (*Agent, *formstate.Store) {
	t.Helper()
	form := formstate.New(logger.NewTestLogger(t))
	agent := NewAgent(store, form, Config{
		Key:        "test_draft",
		Debounce:   testDebounce,
		StatusHold: testHold,
	}, logger.NewTestLogger(t))
	form.Subscribe(agent.Notify)
	t.Cleanup(agent.Close)
	return agent, form
}

// ===== Debounce =====

func TestAgent_DebounceCoalescesWrites(t *testing.T) {
	mem := kv.NewMemoryStore()
	agent, form := newTestAgent(t, mem)

	require.NoError(t, form.SetValue("student.surName", "A"))
	require.NoError(t, form.SetValue("student.surName", "AB"))
	require.NoError(t, form.SetValue("student.surName", "ABC"))
	assert.Equal(t, StatePending, agent.Status().State)

	require.Eventually(t, func() bool { return mem.Writes() == 1 }, waitFor, tick)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 1, mem.Writes())

	rec := agent.LoadDraft(context.Background())
	assert.Equal(t, "ABC", rec.Student.SurName)
}

func TestAgent_SeparatedChangesWriteTwice(t *testing.T) {
	mem := kv.NewMemoryStore()
	_, form := newTestAgent(t, mem)

	require.NoError(t, form.SetValue("student.surName", "A"))
	require.Eventually(t, func() bool { return mem.Writes() == 1 }, waitFor, tick)

	require.NoError(t, form.SetValue("student.firstName", "B"))
	require.Eventually(t, func() bool { return mem.Writes() == 2 }, waitFor, tick)
}

func TestAgent_SkipsWhileErrorsExist(t *testing.T) {
	mem := kv.NewMemoryStore()
	agent, form := newTestAgent(t, mem)
	form.SetSectionErrors(models.SectionStudent, models.ValidationErrorMap{
		"student.firstName": "First name is required",
	})

	require.NoError(t, form.SetValue("student.surName", "A"))
	require.Eventually(t, func() bool { return agent.Status().State == StateIdle }, waitFor, tick)
	time.Sleep(3 * testDebounce)
	assert.Equal(t, 0, mem.Writes())

	err := agent.Flush(context.Background())
	assert.ErrorIs(t, err, ErrRecordHasErrors)
	assert.Equal(t, 0, mem.Writes())
}

func TestAgent_SkipKeepsNewerPending(t *testing.T) {
	form := formstate.New(logger.NewTestLogger(t))
	agent := NewAgent(kv.NewMemoryStore(), form, Config{Key: "test_draft", Debounce: time.Hour}, logger.NewTestLogger(t))
	form.Subscribe(agent.Notify)
	t.Cleanup(agent.Close)

	form.SetSectionErrors(models.SectionStudent, models.ValidationErrorMap{
		"student.firstName": "First name is required",
	})
	require.NoError(t, form.SetValue("student.surName", "A"))
	require.NoError(t, form.SetValue("student.surName", "AB"))

	// the first change fires after the second already re-armed the timer
	assert.ErrorIs(t, agent.save(1), ErrRecordHasErrors)
	assert.Equal(t, StatePending, agent.Status().State)

	assert.ErrorIs(t, agent.save(2), ErrRecordHasErrors)
	assert.Equal(t, StateIdle, agent.Status().State)
}

// ===== Status =====

func TestAgent_StatusTransitions(t *testing.T) {
	mem := kv.NewMemoryStore()
	agent, form := newTestAgent(t, mem)
	var log statusLog
	agent.OnStatus(log.record)

	require.NoError(t, form.SetValue("student.surName", "A"))
	require.Eventually(t, func() bool {
		states := log.snapshot()
		return len(states) > 0 && states[len(states)-1] == StateIdle
	}, waitFor, tick)

	want := []State{StatePending, StateSaving, StateSaved, StateIdle}
	if diff := cmp.Diff(want, log.snapshot()); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestAgent_FailureIsReportedThenCleared(t *testing.T) {
	agent, form := newTestAgent(t, brokenStore{err: errors.New("quota exceeded")})

	require.NoError(t, form.SetValue("student.surName", "A"))
	require.Eventually(t, func() bool { return agent.Status().State == StateFailed }, waitFor, tick)

	st := agent.Status()
	assert.Equal(t, "Your progress could not be saved. You can keep editing.", st.Message)
	assert.Equal(t, st.Message, st.Label())

	require.Eventually(t, func() bool { return agent.Status().State == StateIdle }, waitFor, tick)

	err := agent.Flush(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDraftSave)
}

func TestStatus_Label(t *testing.T) {
	assert.Equal(t, "Draft saved", Status{State: StateSaved}.Label())
	assert.Equal(t, "Save failed", Status{State: StateFailed}.Label())
	assert.Equal(t, "", Status{State: StateIdle}.Label())
}

// ===== Load / clear =====

func TestAgent_LoadClearRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	agent, form := newTestAgent(t, mem)

	assert.Equal(t, models.NewApplicationRecord(), agent.LoadDraft(ctx))

	require.NoError(t, form.SetValue("admissionDetail.numberOfSiblings", 2))
	require.NoError(t, form.SetValue("documents.file1", models.FileRef{Name: "a.pdf", URI: "file:///a.pdf", Size: 3, MimeType: "application/pdf"}))
	require.NoError(t, agent.Flush(ctx))

	restored := agent.LoadDraft(ctx)
	if diff := cmp.Diff(form.Snapshot(), restored); diff != "" {
		t.Errorf("restored record mismatch (-want +got):\n%s", diff)
	}

	agent.ClearDraft(ctx)
	_, found, err := mem.Get(ctx, "test_draft")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.NewApplicationRecord(), agent.LoadDraft(ctx))
}

func TestAgent_LoadKeepsUnvalidatedValues(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	agent, form := newTestAgent(t, mem)

	require.NoError(t, form.SetValue("student.surName", "Mensah"))
	require.NoError(t, form.SetValue("admissionDetail.numberOfSiblings", -1))
	require.NoError(t, agent.Flush(ctx))

	restored := agent.LoadDraft(ctx)
	assert.Equal(t, "Mensah", restored.Student.SurName)
	assert.Equal(t, -1, restored.AdmissionDetail.NumberOfSiblings)
}

func TestAgent_LoadDraftNeverFails(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		store kv.Store
		raw   string
	}{
		{name: "storage error", store: brokenStore{err: errors.New("disk unavailable")}},
		{name: "not json", raw: "{{{"},
		{name: "wrong shape", raw: `{"record":{"admissionDetail":{"numberOfSiblings":"two"}},"savedAt":"2026-01-01T00:00:00Z"}`},
		{name: "missing savedAt", raw: `{"record":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				mem := kv.NewMemoryStore()
				require.NoError(t, mem.Set(ctx, "test_draft", tt.raw))
				store = mem
			}
			agent, _ := newTestAgent(t, store)
			assert.Equal(t, models.NewApplicationRecord(), agent.LoadDraft(ctx))
		})
	}
}

func TestAgent_LoadDraftFillsMissingFields(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, "test_draft",
		`{"record":{"student":{"surName":"Bello"}},"savedAt":"2026-01-01T00:00:00Z"}`))
	agent, _ := newTestAgent(t, mem)

	want := models.NewApplicationRecord()
	want.Student.SurName = "Bello"
	assert.Equal(t, want, agent.LoadDraft(ctx))
}

func TestAgent_ClearCancelsPendingSave(t *testing.T) {
	mem := kv.NewMemoryStore()
	agent, form := newTestAgent(t, mem)

	require.NoError(t, form.SetValue("student.surName", "A"))
	agent.ClearDraft(context.Background())

	time.Sleep(4 * testDebounce)
	assert.Equal(t, 0, mem.Writes())
	assert.Equal(t, StateIdle, agent.Status().State)
}

// ===== Teardown =====

func TestAgent_NoWriteAfterClose(t *testing.T) {
	mem := kv.NewMemoryStore()
	agent, form := newTestAgent(t, mem)

	require.NoError(t, form.SetValue("student.surName", "A"))
	agent.Close()
	agent.Close()

	require.NoError(t, form.SetValue("student.surName", "B"))
	time.Sleep(4 * testDebounce)
	assert.Equal(t, 0, mem.Writes())
	assert.Error(t, agent.Flush(context.Background()))
}

func TestConfig_Defaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	assert.Equal(t, DefaultKey, c.Key)
	assert.Equal(t, 2*time.Second, c.Debounce)
	assert.Equal(t, 3*time.Second, c.StatusHold)
}
