package plan

import (
	"testing"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/exam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time { return domain.TimePtr(now.Add(d)) }

type cardSet map[int64]bool

func (c cardSet) HasCard(id int64) bool { return c[id] }

func TestDailyPlan(t *testing.T) {
	items := []domain.StudyItem{
		{ID: 1, Subject: "A", RevisionCount: 1, NextDue: at(-time.Hour)},                                             // due
		{ID: 2, Subject: "A", RevisionCount: 2, FailCount: 3, NextDue: at(48 * time.Hour)},                           // weak
		{ID: 3, Subject: "B", RevisionCount: 5, NextDue: at(72 * time.Hour), LastReviewed: at(-10 * 24 * time.Hour)}, // strong, oldest
		{ID: 4, Subject: "B", RevisionCount: 4, NextDue: at(72 * time.Hour), LastReviewed: at(-2 * 24 * time.Hour)},  // strong
		{ID: 5, Subject: "C", RevisionCount: 3, NextDue: at(72 * time.Hour), LastReviewed: at(-24 * time.Hour)},      // strong, newest
		{ID: 6, Subject: "C", RevisionCount: 1, NextDue: at(24 * time.Hour)},                                         // not planned
		{ID: 7, Subject: "C", RevisionCount: 1, FailCount: 2, NextDue: at(-time.Hour)},                               // due and weak
	}

	got := DailyPlan(items, now, 0)
	assert.Equal(t, []int64{2, 7, 1, 4, 3}, domain.IDs(got))

	got = DailyPlan(items, now, 2)
	assert.Equal(t, []int64{2, 7}, domain.IDs(got))

	assert.Empty(t, DailyPlan(nil, now, 8))
}

func TestWeakAreas(t *testing.T) {
	items := []domain.StudyItem{
		{ID: 1, Subject: "Surgery", FailCount: 2},
		{ID: 2, Subject: "Medicine", FailCount: 4},
		{ID: 3, Subject: "Surgery", FailCount: 3},
		{ID: 4, Subject: "Anatomy", FailCount: 2},
		{ID: 5, Subject: "Anatomy", FailCount: 1},
	}
	assert.Equal(t, []WeakArea{
		{Subject: "Surgery", Count: 2},
		{Subject: "Anatomy", Count: 1},
		{Subject: "Medicine", Count: 1},
	}, WeakAreas(items))
	assert.Empty(t, WeakAreas(items[4:]))
}

func TestSummarize(t *testing.T) {
	items := []domain.StudyItem{
		{ID: 1, Subject: "Surgery", LastReviewed: at(-time.Hour), NextDue: at(time.Hour), RevisionCount: 1},
		{ID: 2, Subject: "Surgery", LastReviewed: at(-2 * time.Hour), NextDue: at(time.Hour), RevisionCount: 1},
		{ID: 3, Subject: "Medicine", LastReviewed: at(-3 * time.Hour), FailCount: 2, RevisionCount: 1, NextDue: at(time.Hour)},
		{ID: 4, Subject: "Anatomy"},
	}
	o := Summarize(items, cardSet{1: true, 4: true}, now, DefaultTargetBounds)
	assert.Equal(t, Overview{
		Total:        4,
		WithCards:    2,
		WithoutCards: 2,
		Due:          1,
		Weak:         1,
		DailyTarget:  5,
		RecentFocus:  "Surgery",
		NextFocus:    "Medicine",
	}, o)

	o = Summarize(items, nil, now, DefaultTargetBounds)
	assert.Equal(t, 0, o.WithCards)
	assert.Equal(t, 4, o.WithoutCards)
}

func TestRecentFocusTies(t *testing.T) {
	items := []domain.StudyItem{
		{ID: 1, Subject: "Radiology", LastReviewed: at(-time.Hour)},
		{ID: 2, Subject: "Anatomy", LastReviewed: at(-2 * time.Hour)},
	}
	assert.Equal(t, "Anatomy", recentFocus(items))
	assert.Equal(t, "", recentFocus([]domain.StudyItem{{ID: 1}}))
}

func TestPhaseForDeadline(t *testing.T) {
	tests := []struct {
		days int
		want exam.Phase
	}{
		{-1, exam.Normal},
		{0, exam.FinalSprint},
		{7, exam.FinalSprint},
		{8, exam.WeakAndHighYield},
		{30, exam.WeakAndHighYield},
		{31, exam.HighYieldOnly},
		{60, exam.HighYieldOnly},
		{61, exam.Normal},
	}
	for _, tt := range tests {
		target := now.AddDate(0, 0, tt.days)
		assert.Equal(t, tt.want, PhaseForDeadline(now, target, DefaultThresholds), "%d days", tt.days)
	}
}

func TestDaysUntil(t *testing.T) {
	late := time.Date(2026, 7, 1, 23, 59, 0, 0, time.UTC)
	early := time.Date(2026, 7, 2, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysUntil(late, early), "calendar days, not elapsed hours")
	assert.Equal(t, 0, DaysUntil(now, now))
	assert.Equal(t, -3, DaysUntil(now, now.AddDate(0, 0, -3)))
}

func TestThresholdsValidate(t *testing.T) {
	require.NoError(t, DefaultThresholds.Validate())
	assert.ErrorIs(t, Thresholds{FinalSprint: 10, WeakAndHighYield: 5, HighYield: 60}.Validate(), domain.ErrInvalidConfiguration)
	assert.ErrorIs(t, Thresholds{FinalSprint: -1}.Validate(), domain.ErrInvalidConfiguration)
}
