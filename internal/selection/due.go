package selection

import (
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/samber/lo"
)

// IsDue reports whether the item is due by schedule. An absent due date is due.
func IsDue(item domain.StudyItem, now time.Time) bool {
	return item.NextDue == nil || !item.NextDue.After(now)
}

// IsCandidate reports whether the item is new, weak or due.
func IsCandidate(item domain.StudyItem, now time.Time) bool {
	return item.IsNew() || item.IsWeak() || IsDue(item, now)
}

// SelectCandidates returns, in input order, the items that are new, weak or
// due and pass the filter. Weak items are surfaced even when not due.
// Subject membership is not checked here; callers holding the subject set
// run f.Validate(subjects) first, as session.New and exam.NewSprint do.
func SelectCandidates(items []domain.StudyItem, now time.Time, f Filter) ([]domain.StudyItem, error) {
	if err := f.Validate(domain.SubjectSet{}); err != nil {
		return nil, err
	}
	return lo.Filter(items, func(item domain.StudyItem, _ int) bool {
		return IsCandidate(item, now) && f.Match(item)
	}), nil
}

// DueItems selects candidates and puts them in presentation order.
func DueItems(items []domain.StudyItem, now time.Time, f Filter, interleave bool) ([]domain.StudyItem, error) {
	candidates, err := SelectCandidates(items, now, f)
	if err != nil {
		return nil, err
	}
	ordered := Order(candidates)
	if interleave {
		ordered = Interleave(ordered)
	}
	return ordered, nil
}

// DailyTarget suggests how many items to finish today:
// min(ceiling, max(due, strongly weak, floor)).
func DailyTarget(items []domain.StudyItem, now time.Time, ceiling, floor int) int {
	due := lo.CountBy(items, func(item domain.StudyItem) bool { return IsDue(item, now) })
	weak := lo.CountBy(items, func(item domain.StudyItem) bool { return item.FailCount >= 2 })
	return min(ceiling, max(due, weak, floor))
}
