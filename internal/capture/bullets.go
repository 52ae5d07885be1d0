package capture

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// DefaultMaxBullets caps GenerateBullets when no limit is given.
const DefaultMaxBullets = 5

// Bullet lengths are exclusive bounds, counted in runes.
const (
	minBulletLen = 5
	maxBulletLen = 120
)

// GenerateBullets splits free text on sentence and line breaks and keeps the
// fragments that read as a card bullet, in order, up to limit of them. A
// non-positive limit means DefaultMaxBullets.
func GenerateBullets(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxBullets
	}
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == ';' || r == '\n'
	})
	bullets := lo.FilterMap(parts, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		n := utf8.RuneCountInString(p)
		return p, n > minBulletLen && n < maxBulletLen
	})
	if len(bullets) > limit {
		bullets = bullets[:limit]
	}
	return bullets
}
