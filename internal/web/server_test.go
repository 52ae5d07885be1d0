package web

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conorfennell/revisedeck/internal/config"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, items ...domain.StudyItem) (*Server, *storage.DB) {
	t.Helper()
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Sources.ReposDir = t.TempDir()
	cfg.Review.Interleave = false

	db, err := storage.Open(cfg.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	if len(items) > 0 {
		require.NoError(t, db.SaveAll(t.Context(), items))
	}

	s, err := NewServer(db, cfg,
		WithClock(domain.ClockFunc(func() time.Time { return testNow })),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return s, db
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func item(id int64, subject string, fail, revisions int) domain.StudyItem {
	return domain.StudyItem{
		ID:            id,
		Subject:       subject,
		Topic:         "topic",
		Trigger:       "trigger",
		FailCount:     fail,
		RevisionCount: revisions,
		NextDue:       domain.TimePtr(testNow.Add(-time.Hour)),
		CreatedAt:     testNow.Add(-48 * time.Hour),
	}
}

func TestPostItem(t *testing.T) {
	s, db := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/items", `{"subject":"Medicine","topic":"heart  failure","trigger":"BNP"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decode[itemResponse](t, rr)
	assert.Equal(t, int64(1), resp.Item.ID)
	assert.Equal(t, "Heart Failure", resp.Item.Topic)
	assert.Empty(t, resp.Duplicates)

	items, err := db.LoadAll(t.Context())
	require.NoError(t, err)
	require.Len(t, items, 1)

	rr = do(t, s, http.MethodPost, "/items", `{"subject":"Medicine","topic":"Heart failure","trigger":"NYHA"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	resp = decode[itemResponse](t, rr)
	assert.Equal(t, int64(2), resp.Item.ID)
	assert.Equal(t, []int64{1}, domain.IDs(resp.Duplicates))
}

func TestPostItemRejectsInvalid(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/items", `{"subject":"Astrology","topic":"x","trigger":"y"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/items", `{"subject":"Medicine","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetDue(t *testing.T) {
	fresh := item(3, "Surgery", 0, 2)
	fresh.NextDue = domain.TimePtr(testNow.Add(72 * time.Hour))
	s, db := newTestServer(t,
		item(1, "Medicine", 0, 1),
		item(2, "Surgery", 2, 1),
		fresh,
	)

	rr := do(t, s, http.MethodGet, "/items/due", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[dueResponse](t, rr)
	assert.Equal(t, []int64{2, 1}, domain.IDs(resp.Items))
	assert.Equal(t, 5, resp.DailyTarget)

	rr = do(t, s, http.MethodGet, "/items/due?subject=Medicine", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []int64{1}, domain.IDs(decode[dueResponse](t, rr).Items))

	require.NoError(t, db.UpsertCard(t.Context(), domain.StudyCard{ItemID: 1, Title: "card"}))
	rr = do(t, s, http.MethodGet, "/items/due?require_card=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []int64{1}, domain.IDs(decode[dueResponse](t, rr).Items))

	rr = do(t, s, http.MethodGet, "/items/due?require_card=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodGet, "/items/due?subject=Astrology", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionFlow(t *testing.T) {
	s, db := newTestServer(t, item(1, "Medicine", 0, 0))

	rr := do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := decode[createdResponse](t, rr).ID
	require.NotEmpty(t, id)

	rr = do(t, s, http.MethodGet, "/sessions/"+id+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)
	next := decode[nextResponse](t, rr)
	require.NotNil(t, next.Item)
	assert.Equal(t, int64(1), next.Item.ID)
	assert.False(t, next.Complete)

	rr = do(t, s, http.MethodPost, "/sessions/"+id+"/outcome", `{"item_id":1,"outcome":"revised"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[outcomeResponse](t, rr)
	assert.Equal(t, 1, out.Item.RevisionCount)
	require.NotNil(t, out.Item.NextDue)
	assert.Equal(t, testNow.Add(24*time.Hour), out.Item.NextDue.UTC())
	assert.Equal(t, 1, out.Progress.Streak)
	assert.Equal(t, 1, out.Progress.CompletedToday)

	progress, err := db.LoadProgress(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Streak)

	rr = do(t, s, http.MethodGet, "/sessions/"+id+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)
	next = decode[nextResponse](t, rr)
	assert.True(t, next.Complete)
	assert.Nil(t, next.Item)
	assert.Equal(t, 1, next.Completed)

	rr = do(t, s, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, s, http.MethodGet, "/sessions/"+id+"/next", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionOutcomeErrors(t *testing.T) {
	s, _ := newTestServer(t, item(1, "Medicine", 0, 0))

	rr := do(t, s, http.MethodPost, "/sessions", `{"subject":"Medicine","interleave":true}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[createdResponse](t, rr).ID

	rr = do(t, s, http.MethodPost, "/sessions/"+id+"/outcome", `{"item_id":99,"outcome":"weak"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodPost, "/sessions/"+id+"/outcome", `{"item_id":1,"outcome":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/sessions", `{"subject":"Astrology"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodDelete, "/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestConcurrentCaptureAndOutcomes(t *testing.T) {
	const n = 10
	var seed []domain.StudyItem
	for i := int64(1); i <= n; i++ {
		seed = append(seed, item(i, "Medicine", 0, 0))
	}
	s, db := newTestServer(t, seed...)

	ids := make([]string, n)
	for i := range ids {
		rr := do(t, s, http.MethodPost, "/sessions", "")
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		ids[i] = decode[createdResponse](t, rr).ID
	}

	type result struct {
		want int
		rr   *httptest.ResponseRecorder
	}
	results := make([]result, 2*n)
	send := func(slot, want int, method, path, body string) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rr := httptest.NewRecorder()
		s.ServeHTTP(rr, req)
		results[slot] = result{want: want, rr: rr}
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"subject":"Surgery","topic":"topic %d","trigger":"trigger %d"}`, i, i)
			send(2*i, http.StatusCreated, http.MethodPost, "/items", body)
		}()
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"item_id":%d,"outcome":"weak"}`, i+1)
			send(2*i+1, http.StatusOK, http.MethodPost, "/sessions/"+ids[i]+"/outcome", body)
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, r.want, r.rr.Code, r.rr.Body.String())
	}

	items, err := db.LoadAll(t.Context())
	require.NoError(t, err)
	assert.Len(t, items, 2*n)
	for _, it := range items {
		if it.ID <= n {
			assert.Equal(t, 1, it.FailCount, "item %d", it.ID)
		} else {
			assert.Equal(t, "Surgery", it.Subject)
		}
	}
}

func TestIdleHandlesExpire(t *testing.T) {
	s, _ := newTestServer(t, item(1, "Medicine", 0, 0))
	current := testNow
	s.clock = domain.ClockFunc(func() time.Time { return current })
	s.handleTTL = time.Hour

	rr := do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	kept := decode[createdResponse](t, rr).ID
	rr = do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	idle := decode[createdResponse](t, rr).ID
	rr = do(t, s, http.MethodPost, "/sprints", `{"phase":"final_sprint"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	sprint := decode[createdResponse](t, rr).ID

	current = current.Add(50 * time.Minute)
	rr = do(t, s, http.MethodGet, "/sessions/"+kept+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)

	current = current.Add(50 * time.Minute)
	rr = do(t, s, http.MethodGet, "/sessions/"+kept+"/next", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, s, http.MethodGet, "/sessions/"+idle+"/next", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	s.mu.Lock()
	assert.Len(t, s.sessions, 2)
	assert.Empty(t, s.sprints)
	s.mu.Unlock()

	rr = do(t, s, http.MethodGet, "/sprints/"+sprint+"/next", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlesKeptWithoutTTL(t *testing.T) {
	s, _ := newTestServer(t, item(1, "Medicine", 0, 0))
	current := testNow
	s.clock = domain.ClockFunc(func() time.Time { return current })
	s.handleTTL = 0

	rr := do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[createdResponse](t, rr).ID

	current = current.Add(30 * 24 * time.Hour)
	rr = do(t, s, http.MethodGet, "/sessions/"+id+"/next", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSprintFlow(t *testing.T) {
	s, _ := newTestServer(t,
		item(1, "Medicine", 0, 3),
		item(2, "Medicine", 2, 1),
		item(3, "Surgery", 4, 1),
	)

	rr := do(t, s, http.MethodPost, "/sprints", `{"phase":"final_sprint","allow_outcome_recording":false,"daily_cap":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[createdResponse](t, rr)
	assert.Equal(t, "final_sprint", created.Phase)
	id := created.ID

	rr = do(t, s, http.MethodGet, "/sprints/"+id+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)
	next := decode[sprintNextResponse](t, rr)
	require.NotNil(t, next.Item)
	assert.Equal(t, int64(3), next.Item.ID)

	rr = do(t, s, http.MethodPost, "/sprints/"+id+"/outcome", `{"item_id":3,"outcome":"revised"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, s, http.MethodPost, "/sprints/"+id+"/advance", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, s, http.MethodGet, "/sprints/"+id+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)
	next = decode[sprintNextResponse](t, rr)
	assert.True(t, next.CapReached)
	assert.True(t, next.Complete)
	assert.Equal(t, 1, next.HandledToday)

	rr = do(t, s, http.MethodPost, "/sprints/"+id+"/advance", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, s, http.MethodDelete, "/sprints/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestSprintRecording(t *testing.T) {
	s, _ := newTestServer(t, item(1, "Medicine", 3, 1))

	rr := do(t, s, http.MethodPost, "/sprints", `{"phase":"final_sprint"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[createdResponse](t, rr).ID

	rr = do(t, s, http.MethodGet, "/sprints/"+id+"/next", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, s, http.MethodPost, "/sprints/"+id+"/outcome", `{"item_id":1,"outcome":"revised"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 2, decode[outcomeResponse](t, rr).Item.FailCount)

	rr = do(t, s, http.MethodPost, "/sprints", `{"phase":"cramming"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetPlan(t *testing.T) {
	s, _ := newTestServer(t,
		item(1, "Medicine", 2, 1),
		item(2, "Medicine", 0, 1),
	)

	rr := do(t, s, http.MethodGet, "/plan", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[planResponse](t, rr)
	assert.Equal(t, "normal", resp.Phase)
	assert.Nil(t, resp.DaysLeft)
	assert.Equal(t, 2, resp.Overview.Total)
	assert.Equal(t, 1, resp.Overview.Weak)
	assert.Equal(t, "Medicine", resp.Overview.NextFocus)
	require.Len(t, resp.WeakAreas, 1)
	assert.Equal(t, 1, resp.WeakAreas[0].Count)
	assert.ElementsMatch(t, []int64{1, 2}, domain.IDs(resp.Plan))
}

func TestGetPlanWithTargetDate(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.Exam.TargetDate = "2025-03-15"

	rr := do(t, s, http.MethodGet, "/plan", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[planResponse](t, rr)
	assert.Equal(t, "final_sprint", resp.Phase)
	require.NotNil(t, resp.DaysLeft)
	assert.Equal(t, 5, *resp.DaysLeft)
	assert.Empty(t, resp.Plan)
}

func TestPostSyncWithoutSources(t *testing.T) {
	s, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[syncResponse](t, rr)
	assert.Zero(t, resp.Sources)
	assert.Zero(t, resp.Added)
	assert.Empty(t, resp.Errors)
}
