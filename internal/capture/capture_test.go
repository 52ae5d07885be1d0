package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)

type fakeStore struct {
	items   []domain.StudyItem
	saveErr error
}

func (f *fakeStore) LoadAll(context.Context) ([]domain.StudyItem, error) {
	return append([]domain.StudyItem(nil), f.items...), nil
}

func (f *fakeStore) SaveAll(_ context.Context, items []domain.StudyItem) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.items = items
	return nil
}

func (f *fakeStore) NextID(context.Context) (int64, error) { return NextID(f.items), nil }

func newCapturer(t *testing.T) *Capturer {
	t.Helper()
	c, err := New(domain.NewSubjectSet(domain.DefaultSubjects))
	require.NoError(t, err)
	return c
}

func TestNormalizeTopic(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  charcot   triad ", "Charcot Triad"},
		{"BECK TRIAD", "Beck Triad"},
		{"\tvirchow\ntriad", "Virchow Triad"},
		{"", ""},
		{"already Title Case", "Already Title Case"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTopic(tt.in), "input %q", tt.in)
	}
}

func TestFindSoftDuplicates(t *testing.T) {
	items := []domain.StudyItem{
		{ID: 1, Topic: "Charcot Triad"},
		{ID: 2, Topic: "Beck Triad"},
		{ID: 3, Topic: "charcot triad "},
		{ID: 4, Topic: "CHARCOT TRIAD"},
	}

	got := FindSoftDuplicates(items, " charcot  TRIAD", 0)
	assert.Equal(t, []int64{1, 3}, domain.IDs(got))

	got = FindSoftDuplicates(items, "charcot triad", 5)
	assert.Equal(t, []int64{1, 3, 4}, domain.IDs(got))

	assert.Empty(t, FindSoftDuplicates(items, "Cushing Triad", 2))
	assert.Empty(t, FindSoftDuplicates(items, "   ", 2))
}

func TestNewItem(t *testing.T) {
	c := newCapturer(t)

	item, err := c.NewItem(Input{
		Subject:  "Surgery",
		Topic:    " charcot triad",
		Trigger:  " fever, jaundice, RUQ pain ",
		PYQYears: "2019, 2022",
	}, 7, now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.ID)
	assert.Equal(t, "Charcot Triad", item.Topic)
	assert.Equal(t, "fever, jaundice, RUQ pain", item.Trigger)
	assert.Equal(t, 0, item.RevisionCount)
	assert.Equal(t, 0, item.FailCount)
	require.NotNil(t, item.NextDue)
	assert.Equal(t, now, *item.NextDue)
	assert.Equal(t, now, item.CreatedAt)
	assert.Nil(t, item.LastReviewed)

	tests := []struct {
		name string
		in   Input
	}{
		{"missing topic", Input{Subject: "Surgery", Topic: "   ", Trigger: "x"}},
		{"missing trigger", Input{Subject: "Surgery", Topic: "x"}},
		{"unknown subject", Input{Subject: "Astrology", Topic: "x", Trigger: "y"}},
		{"all is not a subject", Input{Subject: domain.AllSubjects, Topic: "x", Trigger: "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.NewItem(tt.in, 1, now)
			assert.ErrorIs(t, err, domain.ErrInvalidItem)
		})
	}
}

func TestAdd(t *testing.T) {
	c := newCapturer(t)
	store := &fakeStore{items: []domain.StudyItem{
		{ID: 3, Subject: "Surgery", Topic: "Charcot Triad"},
		{ID: 9, Subject: "Medicine", Topic: "Beck Triad"},
	}}

	res, err := c.Add(context.Background(), store, Input{Subject: "Surgery", Topic: "charcot triad", Trigger: "cholangitis"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Item.ID)
	assert.Equal(t, []int64{3}, domain.IDs(res.Duplicates))
	assert.Len(t, store.items, 3)
	assert.Equal(t, res.Item, store.items[2])

	store.saveErr = errors.New("disk full")
	_, err = c.Add(context.Background(), store, Input{Subject: "Surgery", Topic: "x", Trigger: "y"}, now)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestNextID(t *testing.T) {
	assert.Equal(t, int64(1), NextID(nil))
	assert.Equal(t, int64(8), NextID([]domain.StudyItem{{ID: 2}, {ID: 7}, {ID: 5}}))
}
