package exam

import (
	"fmt"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/selection"
	"github.com/samber/lo"
)

// Config selects and paces a sprint.
type Config struct {
	Phase Phase
	// AllowOutcomeRecording enables Record. When false the sprint is
	// read-only and Advance is the only way forward.
	AllowOutcomeRecording bool
	Filter                selection.Filter
	Interleave            bool
	// DailyCap stops the sprint for the day after that many items were
	// handled. Zero means unlimited.
	DailyCap int
}

// Validate rejects unknown phases, negative caps and bad filters.
func (c Config) Validate(subjects domain.SubjectSet) error {
	if !c.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %d", domain.ErrInvalidConfiguration, int(c.Phase))
	}
	if c.DailyCap < 0 {
		return fmt.Errorf("%w: negative daily cap %d", domain.ErrInvalidConfiguration, c.DailyCap)
	}
	return c.Filter.Validate(subjects)
}

// Candidates returns the due-selector candidates that belong to the phase,
// in input order. Like selection.SelectCandidates it leaves the subject
// membership check to cfg.Validate with the caller's subject set.
func Candidates(items []domain.StudyItem, now time.Time, cfg Config) ([]domain.StudyItem, error) {
	if err := cfg.Validate(domain.SubjectSet{}); err != nil {
		return nil, err
	}
	candidates, err := selection.SelectCandidates(items, now, cfg.Filter)
	if err != nil {
		return nil, err
	}
	return lo.Filter(candidates, func(item domain.StudyItem, _ int) bool {
		return cfg.Phase.Match(item)
	}), nil
}

// Select returns the phase's candidates in presentation order.
func Select(items []domain.StudyItem, now time.Time, cfg Config) ([]domain.StudyItem, error) {
	candidates, err := Candidates(items, now, cfg)
	if err != nil {
		return nil, err
	}
	ordered := selection.Order(candidates)
	if cfg.Interleave {
		ordered = selection.Interleave(ordered)
	}
	return ordered, nil
}
