package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conorfennell/revisedeck/internal/session"
)

// LoadProgress returns the saved streak bookkeeping, or the zero value.
func (db *DB) LoadProgress(ctx context.Context) (session.Progress, error) {
	var out session.Progress
	err := db.withRetry(ctx, func() error {
		var err error
		out, err = db.loadProgress(ctx)
		return err
	})
	return out, err
}

func (db *DB) loadProgress(ctx context.Context) (session.Progress, error) {
	var (
		p       session.Progress
		lastDay sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT streak, last_day, completed_today FROM progress WHERE id = 1
	`).Scan(&p.Streak, &lastDay, &p.CompletedToday)
	if err == sql.ErrNoRows {
		return session.Progress{}, nil
	}
	if err != nil {
		return session.Progress{}, fmt.Errorf("failed to load progress: %w", err)
	}
	day, err := parseNullTime(lastDay)
	if err != nil {
		return session.Progress{}, fmt.Errorf("progress last_day: %w", err)
	}
	if day != nil {
		p.LastDay = *day
	}
	return p, nil
}

// SaveProgress overwrites the saved streak bookkeeping.
func (db *DB) SaveProgress(ctx context.Context, p session.Progress) error {
	var lastDay sql.NullString
	if !p.LastDay.IsZero() {
		lastDay = sql.NullString{String: formatTime(p.LastDay), Valid: true}
	}
	return db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO progress (id, streak, last_day, completed_today)
			VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				streak = excluded.streak,
				last_day = excluded.last_day,
				completed_today = excluded.completed_today
		`, p.Streak, lastDay, p.CompletedToday)
		if err != nil {
			return fmt.Errorf("failed to save progress: %w", err)
		}
		return nil
	})
}
