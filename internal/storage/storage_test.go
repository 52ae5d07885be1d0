package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 2, 1, 7, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	require.NoError(t, err)

	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
	require.NoError(t, db.Close())

	// Reopening an up-to-date database is a no-op.
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	version, err = db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestWithBusyTimeout(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "a.db", want: "a.db?_pragma=busy_timeout(5000)"},
		{dsn: "a.db?_pragma=foreign_keys(1)", want: "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{dsn: "a.db?_pragma=busy_timeout(100)", want: "a.db?_pragma=busy_timeout(100)"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, withBusyTimeout(tt.dsn))
		})
	}
}

func TestOpenSetsBusyTimeout(t *testing.T) {
	db := openTestDB(t)
	timeout, err := db.BusyTimeout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, busyTimeout, timeout)

	custom, err := Open(filepath.Join(t.TempDir(), "custom.db") + "?_pragma=busy_timeout(1000)")
	require.NoError(t, err)
	defer custom.Close()
	timeout, err = custom.BusyTimeout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Second, timeout)
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers*4)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item := domain.StudyItem{ID: int64(i + 1), Subject: "Medicine", Topic: fmt.Sprint("t", i), Trigger: "x", CreatedAt: created}
			errs <- db.SaveAll(ctx, []domain.StudyItem{item})
			_, err := db.LoadAll(ctx)
			errs <- err
			_, err = db.NextID(ctx)
			errs <- err
			_, err = db.LoadCardIndex(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	items, err := db.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestItemsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	items, err := db.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	id, err := db.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	reviewed := created.Add(time.Hour)
	due := created.Add(49 * time.Hour)
	want := []domain.StudyItem{
		{ID: 4, Subject: "Surgery", Topic: "Charcot Triad", Trigger: "cholangitis", PYQYears: "2021", HighYield: true,
			RevisionCount: 2, FailCount: 1, LastReviewed: &reviewed, NextDue: &due, CreatedAt: created},
		{ID: 2, Subject: "Medicine", Topic: "Beck Triad", CreatedAt: created},
	}
	require.NoError(t, db.SaveAll(ctx, want))

	got, err := db.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, want[1], got[0], "loaded in id order")
	assert.Equal(t, want[0], got[1])
	assert.Nil(t, got[0].NextDue, "absent due date survives as absent")

	id, err = db.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	one, err := db.FindItem(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, want[0], one)

	_, err = db.FindItem(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAllOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveAll(ctx, []domain.StudyItem{{ID: 1, Topic: "a", CreatedAt: created}, {ID: 2, Topic: "b", CreatedAt: created}}))
	require.NoError(t, db.SaveAll(ctx, []domain.StudyItem{{ID: 2, Topic: "b2", CreatedAt: created}}))

	got, err := db.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b2", got[0].Topic)
}

func TestSaveAllRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveAll(ctx, []domain.StudyItem{{ID: 1, Topic: "keep", CreatedAt: created}}))
	err := db.SaveAll(ctx, []domain.StudyItem{{ID: 1, Topic: "x", CreatedAt: created}, {ID: 1, Topic: "dup", CreatedAt: created}})
	require.Error(t, err)

	got, err := db.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].Topic)
}

func TestCards(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	card := domain.StudyCard{
		ItemID:     3,
		Title:      "Charcot",
		Bullets:    []string{"fever", "jaundice"},
		ImagePaths: []string{},
		CreatedAt:  created,
	}
	require.NoError(t, db.UpsertCard(ctx, card))

	got, err := db.FindCard(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, card, got)

	card.ImagePaths = []string{"images/charcot.png"}
	card.ExternalURL = "https://example.org/charcot"
	require.NoError(t, db.UpsertCard(ctx, card))
	require.NoError(t, db.UpsertCard(ctx, domain.StudyCard{ItemID: 5, Title: "plain", CreatedAt: created}))

	cards, err := db.LoadCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, card, cards[0])
	assert.Equal(t, []string{}, cards[1].Bullets)

	idx, err := db.LoadCardIndex(ctx)
	require.NoError(t, err)
	assert.True(t, idx.HasCard(3))
	assert.True(t, idx.HasImages(3))
	assert.True(t, idx.HasCard(5))
	assert.False(t, idx.HasImages(5))
	assert.False(t, idx.HasCard(7))

	require.NoError(t, db.DeleteCard(ctx, 3))
	_, err = db.FindCard(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSources(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertSource(ctx, Source{Kind: SourceLocal, Path: "/notes", Subject: "Surgery"})
	require.NoError(t, err)
	_, err = db.InsertSource(ctx, Source{Kind: SourceGit, Path: "https://github.com/user/notes.git"})
	require.NoError(t, err)

	_, err = db.InsertSource(ctx, Source{Kind: SourceLocal, Path: "/notes"})
	assert.Error(t, err, "paths are unique")

	src, err := db.FindSourceByPath(ctx, "/notes")
	require.NoError(t, err)
	assert.Equal(t, id, src.ID)
	assert.Equal(t, "Surgery", src.Subject)
	assert.Nil(t, src.LastScanned)

	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, created))
	all, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].LastScanned)
	assert.Equal(t, created, *all[0].LastScanned)
	assert.Equal(t, SourceGit, all[1].Kind)

	_, err = db.FindSourceByPath(ctx, "/missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProgress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, err := db.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Progress{}, p)

	want := session.Progress{Streak: 3, LastDay: domain.DayOf(created), CompletedToday: 6}
	require.NoError(t, db.SaveProgress(ctx, want))
	want.Streak = 4
	require.NoError(t, db.SaveProgress(ctx, want))

	p, err = db.LoadProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, p)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isBusy(errors.New("database is locked")))
	assert.False(t, isBusy(errors.New("UNIQUE constraint failed")))
	assert.False(t, isBusy(nil))
}

func TestWithRetry(t *testing.T) {
	db := openTestDB(t)
	db.retryDelay = time.Millisecond

	calls := 0
	err := db.withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = db.withRetry(context.Background(), func() error {
		calls++
		return errors.New("constraint failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-busy errors are not retried")
}
