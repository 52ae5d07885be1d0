package csvimport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// Store is what an import writes to.
type Store interface {
	LoadAll(ctx context.Context) ([]domain.StudyItem, error)
	SaveAll(ctx context.Context, items []domain.StudyItem) error
	UpsertCard(ctx context.Context, card domain.StudyCard) error
}

// Report summarizes an import.
type Report struct {
	ItemsImported int
	ItemsExisting int
	CardsImported int
	CardsOrphaned int
	RowsSkipped   int
}

// Options configures an import. Empty paths are skipped.
type Options struct {
	ItemsPath string
	CardsPath string
	// Location interprets the legacy timezone-less timestamps.
	Location *time.Location
	Now      time.Time
	Logger   *slog.Logger
}

// Import merges the legacy files into store. Items whose id already exists
// are left untouched; cards are only attached to known items.
func Import(ctx context.Context, store Store, opts Options) (Report, error) {
	var report Report
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := store.LoadAll(ctx)
	if err != nil {
		return report, &domain.PersistenceError{Op: "load", Err: err}
	}
	known := make(map[int64]struct{}, len(existing))
	for _, item := range existing {
		known[item.ID] = struct{}{}
	}

	if opts.ItemsPath != "" {
		f, err := os.Open(opts.ItemsPath)
		if err != nil {
			return report, fmt.Errorf("failed to open items file: %w", err)
		}
		items, skipped, err := ReadItems(f, loc, opts.Now)
		f.Close()
		if err != nil {
			return report, fmt.Errorf("%s: %w", opts.ItemsPath, err)
		}
		report.RowsSkipped += skipped

		merged := existing
		for _, item := range items {
			if _, ok := known[item.ID]; ok {
				report.ItemsExisting++
				continue
			}
			known[item.ID] = struct{}{}
			merged = append(merged, item)
			report.ItemsImported++
		}
		if report.ItemsImported > 0 {
			if err := store.SaveAll(ctx, merged); err != nil {
				return report, &domain.PersistenceError{Op: "save", Err: err}
			}
		}
		logger.Info("imported items", "path", opts.ItemsPath, "imported", report.ItemsImported, "existing", report.ItemsExisting, "skipped", skipped)
	}

	if opts.CardsPath != "" {
		f, err := os.Open(opts.CardsPath)
		if err != nil {
			return report, fmt.Errorf("failed to open cards file: %w", err)
		}
		cards, skipped, err := ReadCards(f, loc, opts.Now)
		f.Close()
		if err != nil {
			return report, fmt.Errorf("%s: %w", opts.CardsPath, err)
		}
		report.RowsSkipped += skipped

		for _, card := range cards {
			if _, ok := known[card.ItemID]; !ok {
				logger.Warn("skipping card for unknown item", "item_id", card.ItemID)
				report.CardsOrphaned++
				continue
			}
			if err := store.UpsertCard(ctx, card); err != nil {
				return report, &domain.PersistenceError{Op: "save", Err: err}
			}
			report.CardsImported++
		}
		logger.Info("imported cards", "path", opts.CardsPath, "imported", report.CardsImported, "orphaned", report.CardsOrphaned, "skipped", skipped)
	}

	return report, nil
}
