package domain

import (
	"fmt"
	"strings"
)

// Outcome is the result the learner reports for a presented item.
type Outcome int

const (
	Revised Outcome = iota + 1
	Weak
)

func (o Outcome) String() string {
	switch o {
	case Revised:
		return "revised"
	case Weak:
		return "weak"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == Revised || o == Weak
}

// ParseOutcome accepts "revised" or "weak" in any case.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "revised":
		return Revised, nil
	case "weak":
		return Weak, nil
	default:
		return 0, fmt.Errorf("%w: unknown outcome %q", ErrInvalidConfiguration, s)
	}
}
