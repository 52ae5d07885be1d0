// Package capture turns user input into new study items.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Input is one captured fact before it becomes a StudyItem.
type Input struct {
	Subject   string `validate:"required,subject"`
	Topic     string `validate:"required,max=200"`
	Trigger   string `validate:"required,max=500"`
	PYQYears  string `validate:"max=100"`
	HighYield bool
}

// Store is the slice of the item store capture needs.
type Store interface {
	LoadAll(ctx context.Context) ([]domain.StudyItem, error)
	SaveAll(ctx context.Context, items []domain.StudyItem) error
	NextID(ctx context.Context) (int64, error)
}

// Result is a saved item plus any existing items with the same topic.
type Result struct {
	Item       domain.StudyItem
	Duplicates []domain.StudyItem
}

// Capturer validates input against a closed subject set.
type Capturer struct {
	subjects domain.SubjectSet
	validate *validator.Validate
}

// New builds a Capturer for subjects.
func New(subjects domain.SubjectSet) (*Capturer, error) {
	validate := validator.New()
	if err := validate.RegisterValidation("subject", func(fl validator.FieldLevel) bool {
		return subjects.Contains(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("failed to register subject validation: %w", err)
	}
	return &Capturer{subjects: subjects, validate: validate}, nil
}

// NewItem validates in and returns a fresh item due now.
func (c *Capturer) NewItem(in Input, id int64, now time.Time) (domain.StudyItem, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Topic = NormalizeTopic(in.Topic)
	in.Trigger = strings.TrimSpace(in.Trigger)
	in.PYQYears = strings.TrimSpace(in.PYQYears)

	if err := c.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
				return fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
			})
			return domain.StudyItem{}, fmt.Errorf("%w: %s", domain.ErrInvalidItem, strings.Join(fields, ", "))
		}
		return domain.StudyItem{}, fmt.Errorf("%w: %v", domain.ErrInvalidItem, err)
	}

	return domain.StudyItem{
		ID:        id,
		Subject:   in.Subject,
		Topic:     in.Topic,
		Trigger:   in.Trigger,
		PYQYears:  in.PYQYears,
		HighYield: in.HighYield,
		NextDue:   domain.TimePtr(now),
		CreatedAt: now,
	}, nil
}

// Add validates in, appends it to the store and reports soft duplicates
// found before the save. Duplicates never block the save.
func (c *Capturer) Add(ctx context.Context, store Store, in Input, now time.Time) (Result, error) {
	items, err := store.LoadAll(ctx)
	if err != nil {
		return Result{}, &domain.PersistenceError{Op: "load", Err: err}
	}
	id, err := store.NextID(ctx)
	if err != nil {
		return Result{}, &domain.PersistenceError{Op: "load", Err: err}
	}
	item, err := c.NewItem(in, id, now)
	if err != nil {
		return Result{}, err
	}
	dups := FindSoftDuplicates(items, item.Topic, DefaultDuplicateLimit)
	if err := store.SaveAll(ctx, append(items, item)); err != nil {
		return Result{}, &domain.PersistenceError{Op: "save", Err: err}
	}
	return Result{Item: item, Duplicates: dups}, nil
}

// NextID returns max(id)+1 over items, or 1 for an empty collection.
func NextID(items []domain.StudyItem) int64 {
	if len(items) == 0 {
		return 1
	}
	return lo.MaxBy(items, func(a, b domain.StudyItem) bool { return a.ID > b.ID }).ID + 1
}
