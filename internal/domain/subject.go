package domain

import "strings"

// AllSubjects is the filter value that disables subject restriction.
const AllSubjects = "All"

// DefaultSubjects is the closed category set used when none is configured.
var DefaultSubjects = []string{
	"Medicine", "Surgery", "ObG", "Pediatrics", "Pathology",
	"Pharmacology", "Microbiology", "PSM", "Anatomy",
	"Physiology", "Biochemistry", "Radiology", "Dermatology",
}

// SubjectSet is a closed set of subject names matched exactly.
type SubjectSet struct {
	names []string
	index map[string]struct{}
}

// NewSubjectSet builds a set from names, dropping blanks and duplicates.
func NewSubjectSet(names []string) SubjectSet {
	s := SubjectSet{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := s.index[n]; ok {
			continue
		}
		s.index[n] = struct{}{}
		s.names = append(s.names, n)
	}
	return s
}

// Contains reports whether name is a member of the set.
func (s SubjectSet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the members in declaration order.
func (s SubjectSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of subjects.
func (s SubjectSet) Len() int {
	return len(s.names)
}
