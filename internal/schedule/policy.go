package schedule

import (
	"fmt"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// Day is the unit of the interval table.
const Day = 24 * time.Hour

// WeakRetry is how long a failed item waits, regardless of its table position.
const WeakRetry = Day

// DefaultIntervals is the spacing table in days, indexed by success count.
var DefaultIntervals = []int{0, 1, 3, 7, 15, 30}

// Policy maps a success count to the wait before the item is due again.
// Counts past the end of the table saturate at the last entry.
type Policy struct {
	intervals []int
}

// NewPolicy validates the table: non-empty, non-negative and non-decreasing.
func NewPolicy(intervals []int) (*Policy, error) {
	if len(intervals) == 0 {
		return nil, fmt.Errorf("%w: interval table is empty", domain.ErrInvalidConfiguration)
	}
	for i, d := range intervals {
		if d < 0 {
			return nil, fmt.Errorf("%w: interval %d is negative (%d days)", domain.ErrInvalidConfiguration, i, d)
		}
		if i > 0 && d < intervals[i-1] {
			return nil, fmt.Errorf("%w: interval table must be ascending, %d follows %d", domain.ErrInvalidConfiguration, d, intervals[i-1])
		}
	}
	table := make([]int, len(intervals))
	copy(table, intervals)
	return &Policy{intervals: table}, nil
}

// DefaultPolicy returns the policy for DefaultIntervals.
func DefaultPolicy() *Policy {
	p, _ := NewPolicy(DefaultIntervals)
	return p
}

// Intervals returns a copy of the table.
func (p *Policy) Intervals() []int {
	out := make([]int, len(p.intervals))
	copy(out, p.intervals)
	return out
}

// IntervalDays returns table[min(successCount, len-1)]. Negative counts clamp to 0.
func (p *Policy) IntervalDays(successCount int) int {
	if successCount < 0 {
		successCount = 0
	}
	if successCount >= len(p.intervals) {
		successCount = len(p.intervals) - 1
	}
	return p.intervals[successCount]
}

// NextDueDate returns now plus the interval for successCount.
func (p *Policy) NextDueDate(successCount int, now time.Time) time.Time {
	return now.Add(time.Duration(p.IntervalDays(successCount)) * Day)
}

// WeakRetryDate is the due date after a failed review.
func WeakRetryDate(now time.Time) time.Time {
	return now.Add(WeakRetry)
}
