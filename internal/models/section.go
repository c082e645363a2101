// internal/models/section.go
package models

import "fmt"

// Section is one fixed stage of the admission wizard.
type Section string

const (
	SectionStudent   Section = "student"
	SectionParent    Section = "parent"
	SectionAcademic  Section = "academic"
	SectionDocuments Section = "documents"
	SectionReview    Section = "review"

	// SectionSubmit is the terminal marker returned after review.
	SectionSubmit Section = "submit"
)

var sectionOrder = []Section{
	SectionStudent,
	SectionParent,
	SectionAcademic,
	SectionDocuments,
	SectionReview,
	SectionSubmit,
}

var sectionRoots = map[Section][]string{
	SectionStudent:   {"student"},
	SectionParent:    {"parentGuardian"},
	SectionAcademic:  {"previousAcademicDetail", "admissionDetail"},
	SectionDocuments: {"documents"},
}

// SectionOrder returns the wizard order, ending with the submit marker.
func SectionOrder() []Section {
	out := make([]Section, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// ValidatedSections are the sections that carry fields.
func ValidatedSections() []Section {
	return []Section{SectionStudent, SectionParent, SectionAcademic, SectionDocuments}
}

// SectionRoots returns the top-level record paths owned by a section.
func SectionRoots(s Section) []string {
	return append([]string(nil), sectionRoots[s]...)
}

// SectionForPath returns the section owning a dotted field path.
func SectionForPath(path string) (Section, bool) {
	for s, roots := range sectionRoots {
		for _, root := range roots {
			if path == root || (len(path) > len(root) && path[:len(root)] == root && path[len(root)] == '.') {
				return s, true
			}
		}
	}
	return "", false
}

// ParseSection parses a section name.
func ParseSection(name string) (Section, error) {
	for _, s := range sectionOrder {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", name)
}

func (s Section) String() string { return string(s) }
