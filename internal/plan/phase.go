package plan

import (
	"fmt"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/exam"
)

// Thresholds are the day counts at or below which each exam phase starts.
type Thresholds struct {
	FinalSprint      int
	WeakAndHighYield int
	HighYield        int
}

// DefaultThresholds: final sprint in the last week, weak and high-yield in
// the last month, high-yield only in the last two months.
var DefaultThresholds = Thresholds{FinalSprint: 7, WeakAndHighYield: 30, HighYield: 60}

// Validate requires non-negative, non-decreasing thresholds.
func (t Thresholds) Validate() error {
	if t.FinalSprint < 0 || t.WeakAndHighYield < t.FinalSprint || t.HighYield < t.WeakAndHighYield {
		return fmt.Errorf("%w: phase thresholds must be non-negative and non-decreasing, got %d/%d/%d",
			domain.ErrInvalidConfiguration, t.FinalSprint, t.WeakAndHighYield, t.HighYield)
	}
	return nil
}

// DaysUntil counts calendar days from now to target in now's location.
// It is negative once target has passed.
func DaysUntil(now, target time.Time) int {
	from := domain.DayOf(now)
	to := domain.DayOf(target.In(now.Location()))
	// Round to absorb DST shifts.
	return int(to.Sub(from).Round(24*time.Hour) / (24 * time.Hour))
}

// PhaseForDeadline maps the days left before target to an exam phase. A
// passed target falls back to Normal.
func PhaseForDeadline(now, target time.Time, t Thresholds) exam.Phase {
	days := DaysUntil(now, target)
	switch {
	case days < 0:
		return exam.Normal
	case days <= t.FinalSprint:
		return exam.FinalSprint
	case days <= t.WeakAndHighYield:
		return exam.WeakAndHighYield
	case days <= t.HighYield:
		return exam.HighYieldOnly
	default:
		return exam.Normal
	}
}
