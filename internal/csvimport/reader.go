// Package csvimport migrates the legacy pyq_topics.csv and study_cards.csv
// files into the store. Rows are healed on the way in: missing columns read
// as empty, unparseable dates become absent, bad counts become zero.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// record gives by-name access to one CSV row.
type record struct {
	cols map[string]int
	row  []string
}

func (r record) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.row) {
		return ""
	}
	v := strings.TrimSpace(r.row[i])
	if strings.EqualFold(v, "nan") || strings.EqualFold(v, "nat") || strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

func (r record) count(name string) int {
	v := r.get(name)
	if v == "" {
		return 0
	}
	// pandas writes integer columns holding NaN as floats.
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}

func (r record) id(name string) (int64, bool) {
	v := r.get(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func (r record) date(name string, loc *time.Location) *time.Time {
	v := r.get(name)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return &t
		}
	}
	return nil
}

func (r record) flag(name string) bool {
	switch strings.ToLower(r.get(name)) {
	case "1", "1.0", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// readRecords reads a header row followed by data rows. Short and long rows
// are tolerated.
func readRecords(r io.Reader, visit func(record) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if err := visit(record{cols: cols, row: row}); err != nil {
			return err
		}
	}
}

// ReadItems parses pyq_topics.csv rows. Rows without a usable id or topic
// are skipped and counted.
func ReadItems(r io.Reader, loc *time.Location, now time.Time) ([]domain.StudyItem, int, error) {
	var (
		items   []domain.StudyItem
		skipped int
	)
	err := readRecords(r, func(rec record) error {
		id, ok := rec.id("id")
		topic := rec.get("topic")
		if !ok || topic == "" {
			skipped++
			return nil
		}
		item := domain.StudyItem{
			ID:            id,
			Subject:       rec.get("subject"),
			Topic:         topic,
			Trigger:       rec.get("trigger_line"),
			PYQYears:      rec.get("pyq_years"),
			HighYield:     rec.flag("high_yield"),
			RevisionCount: rec.count("revision_count"),
			FailCount:     rec.count("fail_count"),
			LastReviewed:  rec.date("last_revised", loc),
			NextDue:       rec.date("next_revision_date", loc),
			CreatedAt:     now,
		}
		if created := rec.date("created_at", loc); created != nil {
			item.CreatedAt = *created
		}
		items = append(items, item)
		return nil
	})
	return items, skipped, err
}

// ReadCards parses study_cards.csv rows. Bullets are newline separated and
// image paths semicolon separated. Rows without a topic id are skipped.
func ReadCards(r io.Reader, loc *time.Location, now time.Time) ([]domain.StudyCard, int, error) {
	var (
		cards   []domain.StudyCard
		skipped int
	)
	err := readRecords(r, func(rec record) error {
		itemID, ok := rec.id("topic_id")
		if !ok {
			skipped++
			return nil
		}
		card := domain.StudyCard{
			ItemID:      itemID,
			Title:       rec.get("card_title"),
			Bullets:     splitBullets(rec.get("bullets")),
			ImagePaths:  splitList(rec.get("image_paths"), ";"),
			ExternalURL: rec.get("external_url"),
			CreatedAt:   now,
		}
		if created := rec.date("created_at", loc); created != nil {
			card.CreatedAt = *created
		}
		cards = append(cards, card)
		return nil
	})
	return cards, skipped, err
}

func splitBullets(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "•"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitList(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
