package draft

import "time"

// State is the visible save indicator.
type State string

const (
	StateIdle    State = "idle"
	StatePending State = "pending"
	StateSaving  State = "saving"
	StateSaved   State = "saved"
	StateFailed  State = "failed"
)

// Status is what the form header shows about the latest save.
type Status struct {
	State   State     `json:"state"`
	SavedAt time.Time `json:"savedAt,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Label is the short text displayed next to the indicator.
func (s Status) Label() string {
	switch s.State {
	case StatePending:
		return "Unsaved changes"
	case StateSaving:
		return "Saving..."
	case StateSaved:
		return "Draft saved"
	case StateFailed:
		if s.Message != "" {
			return s.Message
		}
		return "Save failed"
	}
	return ""
}
