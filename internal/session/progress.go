package session

import (
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// Progress is the day-level bookkeeping a collaborator may persist between
// sessions. LastDay is midnight of the last day an outcome was recorded.
type Progress struct {
	Streak         int       `json:"streak"`
	LastDay        time.Time `json:"last_day"`
	CompletedToday int       `json:"completed_today"`
}

// Tally counts one recorded outcome at now. The first outcome on a new
// calendar day bumps the streak and resets the daily count.
func (p *Progress) Tally(now time.Time, completed bool) {
	today := domain.DayOf(now)
	if p.LastDay.IsZero() || !domain.DayOf(p.LastDay.In(now.Location())).Equal(today) {
		p.Streak++
		p.LastDay = today
		p.CompletedToday = 0
	}
	if completed {
		p.CompletedToday++
	}
}

// CompletedOn returns the completed count if day is the last recorded day, else 0.
func (p Progress) CompletedOn(now time.Time) int {
	if p.LastDay.IsZero() || !domain.DayOf(p.LastDay.In(now.Location())).Equal(domain.DayOf(now)) {
		return 0
	}
	return p.CompletedToday
}
