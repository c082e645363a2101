// internal/models/draft.go
package models

// DraftSnapshot is the persisted copy of an in-progress record.
type DraftSnapshot struct {
	Record  ApplicationRecord `json:"record"`
	SavedAt string            `json:"savedAt"` // RFC3339, UTC
}

// ValidationErrorMap maps a dotted field path to a human-readable message.
type ValidationErrorMap map[string]string

// Empty reports whether the map carries no errors.
func (m ValidationErrorMap) Empty() bool {
	return len(m) == 0
}

// Merge copies every entry of other into m.
func (m ValidationErrorMap) Merge(other ValidationErrorMap) {
	for k, v := range other {
		m[k] = v
	}
}
