// Package formstate holds the in-progress admission record, addressed by
// dotted field paths, together with touched flags and validation errors.
package formstate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"parent-portal/internal/common/logger"
	"parent-portal/internal/models"
)

// Listener is called after every successful value change with the written path.
type Listener func(path string)

// Store is the single source of truth for one admission attempt.
type Store struct {
	mu      sync.RWMutex
	record  models.ApplicationRecord
	touched map[string]bool
	errors  models.ValidationErrorMap

	subMu     sync.Mutex
	listeners map[int]Listener
	nextID    int

	logger logger.Logger
}

// New returns a store holding the canonical empty record.
func New(log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Store{
		record:    models.NewApplicationRecord(),
		touched:   make(map[string]bool),
		errors:    make(models.ValidationErrorMap),
		listeners: make(map[int]Listener),
		logger:    log.WithFields(map[string]interface{}{"component": "formstate"}),
	}
}

// GetValue resolves path against the live record. It returns (nil, false) for
// unknown paths and for leaves of an absent file reference.
func (s *Store) GetValue(path string) (any, bool) {
	a, ok := accessors[path]
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return a.get(&s.record)
}

// SetValue writes value at path. Sibling fields are left untouched.
func (s *Store) SetValue(path string, value any) error {
	a, ok := accessors[path]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}

	s.mu.Lock()
	// a failed coercion must leave the record unchanged
	next := s.record.Clone()
	if err := a.set(&next, value); err != nil {
		s.mu.Unlock()
		return err
	}
	s.record = next
	s.mu.Unlock()

	s.logger.Debug("field updated", map[string]interface{}{"path": path})
	s.notify(path)
	return nil
}

// SetTouched marks a field as interacted with.
func (s *Store) SetTouched(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[path] = true
}

func (s *Store) IsTouched(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.touched[path]
}

// FieldError returns the recorded error for path regardless of touched state.
func (s *Store) FieldError(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.errors[path]
	return msg, ok
}

// VisibleError returns the error for path only once the field was touched.
func (s *Store) VisibleError(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.touched[path] {
		return "", false
	}
	msg, ok := s.errors[path]
	return msg, ok
}

// SetSectionErrors replaces every error owned by section with errs.
func (s *Store) SetSectionErrors(section models.Section, errs models.ValidationErrorMap) {
	roots := models.SectionRoots(section)

	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.errors {
		if underAny(path, roots) {
			delete(s.errors, path)
		}
	}
	for path, msg := range errs {
		s.errors[path] = msg
	}
}

// TouchSection marks every error path of the section as touched so a failed
// advance shows all of its messages.
func (s *Store) TouchSection(section models.Section) {
	roots := models.SectionRoots(section)

	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.errors {
		if underAny(path, roots) {
			s.touched[path] = true
		}
	}
}

// Errors returns a copy of the current error map.
func (s *Store) Errors() models.ValidationErrorMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.ValidationErrorMap, len(s.errors))
	out.Merge(s.errors)
	return out
}

func (s *Store) HasErrors() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.errors) > 0
}

// HasSectionErrors reports whether any error lies under the section's roots.
func (s *Store) HasSectionErrors(section models.Section) bool {
	roots := models.SectionRoots(section)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for path := range s.errors {
		if underAny(path, roots) {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy of the record.
func (s *Store) Snapshot() models.ApplicationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Clone()
}

// Load seeds the store, typically from a restored draft. Listeners are not
// notified so seeding never schedules a save.
func (s *Store) Load(r models.ApplicationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = r.Clone()
	s.touched = make(map[string]bool)
	s.errors = make(models.ValidationErrorMap)
}

// ResetToInitial restores the canonical empty record and clears errors and
// touched flags.
func (s *Store) ResetToInitial() {
	s.mu.Lock()
	s.record = models.NewApplicationRecord()
	s.touched = make(map[string]bool)
	s.errors = make(models.ValidationErrorMap)
	s.mu.Unlock()

	s.logger.Info("form reset to initial values", nil)
	s.notify("")
}

// Subscribe registers l for value changes. The returned func removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.listeners, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(path string) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ls := make([]Listener, 0, len(ids))
	for _, id := range ids {
		ls = append(ls, s.listeners[id])
	}
	s.subMu.Unlock()

	for _, l := range ls {
		l(path)
	}
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+".") {
			return true
		}
	}
	return false
}
