package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conorfennell/revisedeck/internal/domain"
)

// CardIndex records which items have a card and whether it carries images.
// It answers the selection filters without loading card bodies.
type CardIndex map[int64]bool

// HasCard reports whether itemID has a card.
func (idx CardIndex) HasCard(itemID int64) bool {
	_, ok := idx[itemID]
	return ok
}

// HasImages reports whether itemID's card has at least one image.
func (idx CardIndex) HasImages(itemID int64) bool {
	return idx[itemID]
}

// UpsertCard stores card, replacing any card already attached to the item.
func (db *DB) UpsertCard(ctx context.Context, card domain.StudyCard) error {
	bullets, err := json.Marshal(nonNil(card.Bullets))
	if err != nil {
		return fmt.Errorf("failed to encode bullets for item %d: %w", card.ItemID, err)
	}
	images, err := json.Marshal(nonNil(card.ImagePaths))
	if err != nil {
		return fmt.Errorf("failed to encode image paths for item %d: %w", card.ItemID, err)
	}

	return db.withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO cards (item_id, title, bullets, image_paths, external_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(item_id) DO UPDATE SET
				title = excluded.title,
				bullets = excluded.bullets,
				image_paths = excluded.image_paths,
				external_url = excluded.external_url,
				created_at = excluded.created_at
		`,
			card.ItemID,
			card.Title,
			string(bullets),
			string(images),
			card.ExternalURL,
			formatTime(card.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert card for item %d: %w", card.ItemID, err)
		}
		return nil
	})
}

// DeleteCard removes the card attached to itemID, if any.
func (db *DB) DeleteCard(ctx context.Context, itemID int64) error {
	return db.withRetry(ctx, func() error {
		if _, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE item_id = ?`, itemID); err != nil {
			return fmt.Errorf("failed to delete card for item %d: %w", itemID, err)
		}
		return nil
	})
}

// FindCard retrieves the card attached to itemID.
func (db *DB) FindCard(ctx context.Context, itemID int64) (domain.StudyCard, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT item_id, title, bullets, image_paths, external_url, created_at
		FROM cards WHERE item_id = ?
	`, itemID)
	card, err := scanCard(row)
	if err == sql.ErrNoRows {
		return domain.StudyCard{}, fmt.Errorf("card for item %d: %w", itemID, ErrNotFound)
	}
	return card, err
}

// LoadCards returns every card ordered by item id.
func (db *DB) LoadCards(ctx context.Context) ([]domain.StudyCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT item_id, title, bullets, image_paths, external_url, created_at
		FROM cards ORDER BY item_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.StudyCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return cards, nil
}

// LoadCardIndex builds a CardIndex over all stored cards.
func (db *DB) LoadCardIndex(ctx context.Context) (CardIndex, error) {
	var out CardIndex
	err := db.withRetry(ctx, func() error {
		var err error
		out, err = db.loadCardIndex(ctx)
		return err
	})
	return out, err
}

func (db *DB) loadCardIndex(ctx context.Context) (CardIndex, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT item_id, image_paths FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to load card index: %w", err)
	}
	defer rows.Close()

	idx := make(CardIndex)
	for rows.Next() {
		var (
			itemID int64
			raw    string
		)
		if err := rows.Scan(&itemID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan card index row: %w", err)
		}
		var images []string
		if err := json.Unmarshal([]byte(raw), &images); err != nil {
			return nil, fmt.Errorf("card for item %d image_paths: %w", itemID, err)
		}
		idx[itemID] = len(images) > 0
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card index: %w", err)
	}
	return idx, nil
}

func scanCard(s scanner) (domain.StudyCard, error) {
	var (
		card                domain.StudyCard
		bullets, images, ts string
	)
	if err := s.Scan(&card.ItemID, &card.Title, &bullets, &images, &card.ExternalURL, &ts); err != nil {
		if err == sql.ErrNoRows {
			return domain.StudyCard{}, err
		}
		return domain.StudyCard{}, fmt.Errorf("failed to scan card row: %w", err)
	}
	if err := json.Unmarshal([]byte(bullets), &card.Bullets); err != nil {
		return domain.StudyCard{}, fmt.Errorf("card for item %d bullets: %w", card.ItemID, err)
	}
	if err := json.Unmarshal([]byte(images), &card.ImagePaths); err != nil {
		return domain.StudyCard{}, fmt.Errorf("card for item %d image_paths: %w", card.ItemID, err)
	}
	createdAt, err := parseTime(ts)
	if err != nil {
		return domain.StudyCard{}, fmt.Errorf("card for item %d created_at: %w", card.ItemID, err)
	}
	card.CreatedAt = createdAt
	return card, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
