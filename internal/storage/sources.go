package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Source kinds.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source represents a note source, either a local path or a Git URL.
type Source struct {
	ID   int64
	Kind string
	Path string
	// Subject is applied to captured blocks that do not name one.
	Subject     string
	LastScanned *time.Time
}

// InsertSource inserts a new source into the database and returns its ID.
func (db *DB) InsertSource(ctx context.Context, src Source) (int64, error) {
	var id int64
	err := db.withRetry(ctx, func() error {
		res, err := db.conn.ExecContext(ctx, `
			INSERT INTO sources (kind, path, subject, last_scanned)
			VALUES (?, ?, ?, ?)
		`, src.Kind, src.Path, src.Subject, formatNullTime(src.LastScanned))
		if err != nil {
			return fmt.Errorf("failed to insert source %s: %w", src.Path, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID for source %s: %w", src.Path, err)
		}
		return nil
	})
	return id, err
}

// FindSourceByPath retrieves a source from the database by its path.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (Source, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, kind, path, subject, last_scanned
		FROM sources WHERE path = ?
	`, path)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return Source{}, fmt.Errorf("source %s: %w", path, ErrNotFound)
	}
	return src, err
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, kind, path, subject, last_scanned
		FROM sources ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	return db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			UPDATE sources
			SET last_scanned = ?
			WHERE id = ?
		`, formatTime(at), sourceID)
		if err != nil {
			return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
		}
		return nil
	})
}

func scanSource(s scanner) (Source, error) {
	var (
		src         Source
		lastScanned sql.NullString
	)
	if err := s.Scan(&src.ID, &src.Kind, &src.Path, &src.Subject, &lastScanned); err != nil {
		if err == sql.ErrNoRows {
			return Source{}, err
		}
		return Source{}, fmt.Errorf("failed to scan source row: %w", err)
	}
	t, err := parseNullTime(lastScanned)
	if err != nil {
		return Source{}, fmt.Errorf("source %d last_scanned: %w", src.ID, err)
	}
	src.LastScanned = t
	return src, nil
}
