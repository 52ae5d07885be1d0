// Package plan derives dashboard guidance from the item collection: today's
// plan, weak areas, progress figures and the exam phase for a target date.
package plan

import (
	"sort"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/selection"
	"github.com/samber/lo"
)

const (
	// DefaultLimit caps the daily plan.
	DefaultLimit = 8
	// strongPicks is how many well-known items are mixed in for upkeep.
	strongPicks = 2
	// strongRevisions marks an item as well known.
	strongRevisions = 3
	recentWindow    = 10
)

// DailyPlan lists today's work: due items, then repeatedly failed items,
// then a couple of strong items for upkeep, deduplicated and put in
// presentation order. Strong picks are the ones reviewed longest ago.
func DailyPlan(items []domain.StudyItem, now time.Time, limit int) []domain.StudyItem {
	if limit <= 0 {
		limit = DefaultLimit
	}
	due := lo.Filter(items, func(item domain.StudyItem, _ int) bool { return selection.IsDue(item, now) })
	weak := lo.Filter(items, func(item domain.StudyItem, _ int) bool { return item.FailCount >= 2 })
	strong := lo.Filter(items, func(item domain.StudyItem, _ int) bool {
		return item.RevisionCount >= strongRevisions && item.FailCount < 2
	})
	sort.SliceStable(strong, func(i, j int) bool {
		return reviewedBefore(strong[i], strong[j])
	})
	if len(strong) > strongPicks {
		strong = strong[:strongPicks]
	}

	picked := lo.UniqBy(append(append(due, weak...), strong...), func(item domain.StudyItem) int64 {
		return item.ID
	})
	ordered := selection.Order(picked)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}

// reviewedBefore orders never-reviewed items first, then by last review,
// then by id.
func reviewedBefore(a, b domain.StudyItem) bool {
	switch {
	case a.LastReviewed == nil && b.LastReviewed != nil:
		return true
	case a.LastReviewed != nil && b.LastReviewed == nil:
		return false
	case a.LastReviewed != nil && !a.LastReviewed.Equal(*b.LastReviewed):
		return a.LastReviewed.Before(*b.LastReviewed)
	}
	return a.ID < b.ID
}

// WeakArea is the number of repeatedly failed items in a subject.
type WeakArea struct {
	Subject string `json:"subject"`
	Count   int    `json:"count"`
}

// WeakAreas counts items with fail_count >= 2 per subject, largest first,
// ties broken by subject name.
func WeakAreas(items []domain.StudyItem) []WeakArea {
	groups := lo.GroupBy(
		lo.Filter(items, func(item domain.StudyItem, _ int) bool { return item.FailCount >= 2 }),
		func(item domain.StudyItem) string { return item.Subject },
	)
	areas := lo.MapToSlice(groups, func(subject string, group []domain.StudyItem) WeakArea {
		return WeakArea{Subject: subject, Count: len(group)}
	})
	sort.Slice(areas, func(i, j int) bool {
		if areas[i].Count != areas[j].Count {
			return areas[i].Count > areas[j].Count
		}
		return areas[i].Subject < areas[j].Subject
	})
	return areas
}

// Overview is the progress summary shown on the dashboard.
type Overview struct {
	Total        int    `json:"total"`
	WithCards    int    `json:"with_cards"`
	WithoutCards int    `json:"without_cards"`
	Due          int    `json:"due"`
	Weak         int    `json:"weak"`
	DailyTarget  int    `json:"daily_target"`
	RecentFocus  string `json:"recent_focus,omitempty"`
	// NextFocus is the subject with the most weak items, if any.
	NextFocus string `json:"next_focus,omitempty"`
}

// TargetBounds clamps the suggested daily target.
type TargetBounds struct {
	Ceiling int
	Floor   int
}

// DefaultTargetBounds matches the review.daily_target_* defaults.
var DefaultTargetBounds = TargetBounds{Ceiling: 10, Floor: 5}

// Summarize builds the overview. cards may be nil when no card index is
// available; every item then counts as without a card.
func Summarize(items []domain.StudyItem, cards selection.CardChecker, now time.Time, bounds TargetBounds) Overview {
	o := Overview{
		Total:       len(items),
		Due:         lo.CountBy(items, func(item domain.StudyItem) bool { return selection.IsDue(item, now) }),
		Weak:        lo.CountBy(items, func(item domain.StudyItem) bool { return item.FailCount >= 2 }),
		DailyTarget: selection.DailyTarget(items, now, bounds.Ceiling, bounds.Floor),
		RecentFocus: recentFocus(items),
	}
	if cards != nil {
		o.WithCards = lo.CountBy(items, func(item domain.StudyItem) bool { return cards.HasCard(item.ID) })
	}
	o.WithoutCards = o.Total - o.WithCards
	if areas := WeakAreas(items); len(areas) > 0 {
		o.NextFocus = areas[0].Subject
	}
	return o
}

// recentFocus returns the most common subject among the most recently
// reviewed items, ties broken by name.
func recentFocus(items []domain.StudyItem) string {
	reviewed := lo.Filter(items, func(item domain.StudyItem, _ int) bool { return item.LastReviewed != nil })
	if len(reviewed) == 0 {
		return ""
	}
	sort.SliceStable(reviewed, func(i, j int) bool {
		return reviewedBefore(reviewed[j], reviewed[i])
	})
	if len(reviewed) > recentWindow {
		reviewed = reviewed[:recentWindow]
	}
	groups := lo.GroupBy(reviewed, func(item domain.StudyItem) string { return item.Subject })
	best, bestCount := "", 0
	for subject, group := range groups {
		count := len(group)
		if count > bestCount || (count == bestCount && subject < best) {
			best, bestCount = subject, count
		}
	}
	return best
}
