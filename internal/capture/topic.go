package capture

import (
	"strings"

	"github.com/conorfennell/revisedeck/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultDuplicateLimit is how many soft duplicates a capture reports.
const DefaultDuplicateLimit = 2

// NormalizeTopic collapses whitespace and title-cases each word.
func NormalizeTopic(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	return cases.Title(language.Und).String(collapsed)
}

// FindSoftDuplicates returns up to limit items whose stored topic matches
// topic after normalization, ignoring case. A non-positive limit means
// DefaultDuplicateLimit.
func FindSoftDuplicates(items []domain.StudyItem, topic string, limit int) []domain.StudyItem {
	if limit <= 0 {
		limit = DefaultDuplicateLimit
	}
	want := strings.ToLower(NormalizeTopic(topic))
	if want == "" {
		return nil
	}
	var out []domain.StudyItem
	for _, item := range items {
		if strings.ToLower(strings.TrimSpace(item.Topic)) != want {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}
