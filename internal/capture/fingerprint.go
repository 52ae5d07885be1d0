package capture

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// Normalize joins the item's identifying content after cleaning each part.
// Each field is trimmed, lowercased and given unix line endings.
func Normalize(item domain.StudyItem) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return strings.Join(strings.Fields(p), " ")
	}

	// Newline separation keeps "ab"+"c" distinct from "a"+"bc".
	return strings.Join([]string{
		normalizePart(item.Subject),
		normalizePart(item.Topic),
		normalizePart(item.Trigger),
	}, "\n")
}

// Fingerprint returns the hex SHA-256 of the normalized item. Scheduling
// state does not contribute.
func Fingerprint(item domain.StudyItem) string {
	sum := sha256.Sum256([]byte(Normalize(item)))
	return fmt.Sprintf("%x", sum)
}
