package exam

import (
	"fmt"
	"strings"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// Phase narrows review as the exam approaches.
type Phase int

const (
	Normal Phase = iota
	HighYieldOnly
	WeakAndHighYield
	FinalSprint
)

var phaseNames = map[Phase]string{
	Normal:           "normal",
	HighYieldOnly:    "high_yield_only",
	WeakAndHighYield: "weak_and_high_yield",
	FinalSprint:      "final_sprint",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// ParsePhase accepts the snake_case phase names, case-insensitively.
// Hyphens are treated as underscores.
func ParsePhase(s string) (Phase, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for p, name := range phaseNames {
		if name == key {
			return p, nil
		}
	}
	return Normal, fmt.Errorf("%w: unknown phase %q", domain.ErrInvalidConfiguration, s)
}

// Match reports whether item belongs to the phase's subset.
func (p Phase) Match(item domain.StudyItem) bool {
	switch p {
	case HighYieldOnly:
		return item.HighYield
	case WeakAndHighYield:
		return item.HighYield || item.FailCount >= 2
	case FinalSprint:
		return item.FailCount >= 2
	default:
		return true
	}
}
