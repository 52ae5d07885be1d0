package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conorfennell/revisedeck/internal/domain"
)

const itemColumns = `id, subject, topic, trigger_line, pyq_years, high_yield,
	revision_count, fail_count, last_reviewed, next_due, created_at`

// LoadAll returns every item ordered by id.
func (db *DB) LoadAll(ctx context.Context) ([]domain.StudyItem, error) {
	var out []domain.StudyItem
	err := db.withRetry(ctx, func() error {
		var err error
		out, err = db.loadAll(ctx)
		return err
	})
	return out, err
}

func (db *DB) loadAll(ctx context.Context) ([]domain.StudyItem, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	defer rows.Close()

	var items []domain.StudyItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// SaveAll replaces the whole collection in one transaction.
func (db *DB) SaveAll(ctx context.Context, items []domain.StudyItem) error {
	return db.withRetry(ctx, func() error {
		return db.saveAll(ctx, items)
	})
}

func (db *DB) saveAll(ctx context.Context, items []domain.StudyItem) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.Subject,
			item.Topic,
			item.Trigger,
			item.PYQYears,
			item.HighYield,
			item.RevisionCount,
			item.FailCount,
			formatNullTime(item.LastReviewed),
			formatNullTime(item.NextDue),
			formatTime(item.CreatedAt),
		); err != nil {
			return fmt.Errorf("failed to insert item %d: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit items: %w", err)
	}
	return nil
}

// NextID returns max(id)+1, or 1 when there are no items.
func (db *DB) NextID(ctx context.Context) (int64, error) {
	var out int64
	err := db.withRetry(ctx, func() error {
		var err error
		out, err = db.nextID(ctx)
		return err
	})
	return out, err
}

func (db *DB) nextID(ctx context.Context) (int64, error) {
	var maxID sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, `SELECT MAX(id) FROM items`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to read max item id: %w", err)
	}
	return maxID.Int64 + 1, nil
}

// FindItem retrieves one item by id.
func (db *DB) FindItem(ctx context.Context, id int64) (domain.StudyItem, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return domain.StudyItem{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return item, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (domain.StudyItem, error) {
	var (
		item                  domain.StudyItem
		lastReviewed, nextDue sql.NullString
		createdAt             string
	)
	if err := s.Scan(
		&item.ID,
		&item.Subject,
		&item.Topic,
		&item.Trigger,
		&item.PYQYears,
		&item.HighYield,
		&item.RevisionCount,
		&item.FailCount,
		&lastReviewed,
		&nextDue,
		&createdAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.StudyItem{}, err
		}
		return domain.StudyItem{}, fmt.Errorf("failed to scan item row: %w", err)
	}

	var err error
	if item.LastReviewed, err = parseNullTime(lastReviewed); err != nil {
		return domain.StudyItem{}, fmt.Errorf("item %d last_reviewed: %w", item.ID, err)
	}
	if item.NextDue, err = parseNullTime(nextDue); err != nil {
		return domain.StudyItem{}, fmt.Errorf("item %d next_due: %w", item.ID, err)
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.StudyItem{}, fmt.Errorf("item %d created_at: %w", item.ID, err)
	}
	return item, nil
}
