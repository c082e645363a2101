// Package sequencer moves the parent through the fixed section order, only
// past sections that validate.
package sequencer

import (
	"errors"
	"fmt"
	"sync"

	"parent-portal/internal/models"
)

var (
	ErrOutOfOrder = errors.New("section is not the current section")
	ErrTerminal   = errors.New("no section follows submit")
	ErrJumpTarget = errors.New("cannot jump to the submit marker")
)

// Gate validates a section and returns its errors.
type Gate func(section models.Section) (models.ValidationErrorMap, error)

// Next returns the section after s.
func Next(s models.Section) (models.Section, error) {
	order := models.SectionOrder()
	for i, sec := range order {
		if sec != s {
			continue
		}
		if i == len(order)-1 {
			return "", ErrTerminal
		}
		return order[i+1], nil
	}
	return "", fmt.Errorf("unknown section %q", s)
}

type Sequencer struct {
	mu      sync.Mutex
	gate    Gate
	current models.Section
	visited map[models.Section]bool
}

// New positions a sequencer on the first section.
func New(gate Gate) *Sequencer {
	return &Sequencer{
		gate:    gate,
		current: models.SectionStudent,
		visited: make(map[models.Section]bool),
	}
}

func (s *Sequencer) Current() models.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Advance runs the gate for current and moves on when it reports no errors.
// A non-empty map leaves the sequencer where it was.
func (s *Sequencer) Advance(current models.Section) (models.Section, models.ValidationErrorMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current != s.current {
		return s.current, nil, fmt.Errorf("%w: at %s, asked to advance %s", ErrOutOfOrder, s.current, current)
	}
	next, err := Next(current)
	if err != nil {
		return s.current, nil, err
	}

	errs := models.ValidationErrorMap{}
	if hasFields(current) && s.gate != nil {
		errs, err = s.gate(current)
		if err != nil {
			return s.current, nil, err
		}
		if !errs.Empty() {
			return s.current, errs, nil
		}
	}

	s.visited[current] = true
	s.current = next
	return next, errs, nil
}

// JumpTo moves to any section without validation, as the review screen's edit links do.
func (s *Sequencer) JumpTo(section models.Section) error {
	if section == models.SectionSubmit {
		return ErrJumpTarget
	}
	if _, err := models.ParseSection(string(section)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = section
	return nil
}

// Visited reports whether the parent already advanced past section.
func (s *Sequencer) Visited(section models.Section) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited[section]
}

// Reset returns to the first section and forgets visits.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = models.SectionStudent
	s.visited = make(map[models.Section]bool)
}

func hasFields(section models.Section) bool {
	for _, s := range models.ValidatedSections() {
		if s == section {
			return true
		}
	}
	return false
}
