package selection

import (
	"fmt"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// CardChecker answers whether an item has a study card.
type CardChecker interface {
	HasCard(itemID int64) bool
}

// ImageChecker answers whether an item's card carries images.
type ImageChecker interface {
	HasImages(itemID int64) bool
}

// Filter narrows the candidate set. The zero value selects everything.
type Filter struct {
	// Subject restricts to one category; "" or domain.AllSubjects means all.
	Subject string
	// RequireCard drops items without a study card.
	RequireCard bool
	// RequireImages drops items whose card has no images. Implies RequireCard.
	RequireImages bool
	Cards         CardChecker
}

// Validate checks the filter against the closed subject set. An empty set
// skips the subject membership check.
func (f Filter) Validate(subjects domain.SubjectSet) error {
	if f.Subject != "" && f.Subject != domain.AllSubjects && subjects.Len() > 0 && !subjects.Contains(f.Subject) {
		return fmt.Errorf("%w: unknown subject %q", domain.ErrInvalidConfiguration, f.Subject)
	}
	if (f.RequireCard || f.RequireImages) && f.Cards == nil {
		return fmt.Errorf("%w: card filter requires a card index", domain.ErrInvalidConfiguration)
	}
	if f.RequireImages {
		if _, ok := f.Cards.(ImageChecker); !ok {
			return fmt.Errorf("%w: card index cannot report images", domain.ErrInvalidConfiguration)
		}
	}
	return nil
}

func (f Filter) allSubjects() bool {
	return f.Subject == "" || f.Subject == domain.AllSubjects
}

// Match reports whether item passes the filter.
func (f Filter) Match(item domain.StudyItem) bool {
	if !f.allSubjects() && item.Subject != f.Subject {
		return false
	}
	if (f.RequireCard || f.RequireImages) && !f.Cards.HasCard(item.ID) {
		return false
	}
	if f.RequireImages && !f.Cards.(ImageChecker).HasImages(item.ID) {
		return false
	}
	return true
}
