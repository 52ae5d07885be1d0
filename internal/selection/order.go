package selection

import (
	"sort"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// Order sorts weakest first: fail count descending, revision count
// ascending, due date ascending (absent first), then id ascending.
// The input slice is not modified.
func Order(items []domain.StudyItem) []domain.StudyItem {
	out := make([]domain.StudyItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func less(a, b domain.StudyItem) bool {
	if a.FailCount != b.FailCount {
		return a.FailCount > b.FailCount
	}
	if a.RevisionCount != b.RevisionCount {
		return a.RevisionCount < b.RevisionCount
	}
	switch {
	case a.NextDue == nil && b.NextDue != nil:
		return true
	case a.NextDue != nil && b.NextDue == nil:
		return false
	case a.NextDue != nil && b.NextDue != nil && !a.NextDue.Equal(*b.NextDue):
		return a.NextDue.Before(*b.NextDue)
	}
	return a.ID < b.ID
}

// Interleave deals items round-robin across subjects, keeping the order
// within each subject. Subjects take turns in order of first appearance.
func Interleave(items []domain.StudyItem) []domain.StudyItem {
	var subjects []string
	groups := make(map[string][]domain.StudyItem)
	for _, item := range items {
		if _, ok := groups[item.Subject]; !ok {
			subjects = append(subjects, item.Subject)
		}
		groups[item.Subject] = append(groups[item.Subject], item)
	}

	out := make([]domain.StudyItem, 0, len(items))
	for len(out) < len(items) {
		for _, s := range subjects {
			if g := groups[s]; len(g) > 0 {
				out = append(out, g[0])
				groups[s] = g[1:]
			}
		}
	}
	return out
}
