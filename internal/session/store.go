package session

import (
	"context"

	"github.com/conorfennell/revisedeck/internal/domain"
)

//go:generate mockgen -source=store.go -destination=mock_session/mock_store.go -package=mock_session

// ItemStore is the durable item collection. SaveAll overwrites the whole
// collection; there is no partial update.
type ItemStore interface {
	LoadAll(ctx context.Context) ([]domain.StudyItem, error)
	SaveAll(ctx context.Context, items []domain.StudyItem) error
}
