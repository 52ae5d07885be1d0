package session

import (
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/schedule"
)

// ApplyOutcome returns the item after recording outcome at now.
//
// Revised advances the spacing table and forgives one failure. Weak adds a
// failure and schedules the item one day out, whatever the table says.
func ApplyOutcome(item domain.StudyItem, outcome domain.Outcome, now time.Time, policy *schedule.Policy) domain.StudyItem {
	out := item.Clone()
	out.LastReviewed = domain.TimePtr(now)
	switch outcome {
	case domain.Revised:
		out.RevisionCount++
		if out.FailCount > 0 {
			out.FailCount--
		}
		out.NextDue = domain.TimePtr(policy.NextDueDate(out.RevisionCount, now))
	case domain.Weak:
		out.FailCount++
		out.NextDue = domain.TimePtr(schedule.WeakRetryDate(now))
	}
	return out
}

// replaceItem returns a copy of items with the entry for updated.ID swapped.
func replaceItem(items []domain.StudyItem, updated domain.StudyItem) []domain.StudyItem {
	out := make([]domain.StudyItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == updated.ID {
			out[i] = updated
		}
	}
	return out
}

func findItem(items []domain.StudyItem, id int64) (domain.StudyItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.StudyItem{}, false
}
