package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conorfennell/revisedeck/internal/capture"
	"github.com/conorfennell/revisedeck/internal/config"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/exam"
	"github.com/conorfennell/revisedeck/internal/schedule"
	"github.com/conorfennell/revisedeck/internal/selection"
	"github.com/conorfennell/revisedeck/internal/session"
	"github.com/conorfennell/revisedeck/internal/storage"
	notesync "github.com/conorfennell/revisedeck/internal/sync"
	"github.com/google/uuid"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	cfg      *config.Config
	policy   *schedule.Policy
	capturer *capture.Capturer
	clock    domain.Clock
	logger   *slog.Logger
	router   *http.ServeMux

	// syncOpts is used by POST /sync; Capturer and Clock are filled in.
	syncOpts notesync.Options

	mu        sync.Mutex
	sessions  map[string]*sessionHandle
	sprints   map[string]*sprintHandle
	handleTTL time.Duration

	// writeMu serializes read-modify-write cycles against the item store,
	// which saves the whole collection at once.
	writeMu sync.Mutex

	// progressMu serializes streak writes. Concurrent handles are
	// last-writer-wins on the stored progress row.
	progressMu sync.Mutex
}

// Each handle is driven by one request at a time. lastUsed is guarded by
// Server.mu.
type sessionHandle struct {
	mu       sync.Mutex
	s        *session.Session
	lastUsed time.Time
}

type sprintHandle struct {
	mu       sync.Mutex
	sp       *exam.Sprint
	lastUsed time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces the wall clock.
func WithClock(c domain.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSyncOptions sets the options POST /sync runs with.
func WithSyncOptions(o notesync.Options) Option {
	return func(s *Server) { s.syncOpts = o }
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, cfg *config.Config, opts ...Option) (*Server, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	capturer, err := capture.New(cfg.SubjectSet())
	if err != nil {
		return nil, err
	}
	s := &Server{
		db:        db,
		cfg:       cfg,
		policy:    policy,
		capturer:  capturer,
		clock:     domain.SystemClock,
		logger:    slog.Default(),
		router:    http.NewServeMux(),
		syncOpts:  notesync.Options{ReposDir: cfg.Sources.ReposDir},
		sessions:  make(map[string]*sessionHandle),
		sprints:   make(map[string]*sprintHandle),
		handleTTL: cfg.Server.HandleTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.syncOpts.Capturer = capturer
	s.syncOpts.Clock = s.clock
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /items/due", s.handleGetDue())
	s.router.HandleFunc("POST /items", s.handlePostItem())

	s.router.HandleFunc("POST /sessions", s.handlePostSession())
	s.router.HandleFunc("GET /sessions/{id}/next", s.handleSessionNext())
	s.router.HandleFunc("POST /sessions/{id}/outcome", s.handleSessionOutcome())
	s.router.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession())

	s.router.HandleFunc("POST /sprints", s.handlePostSprint())
	s.router.HandleFunc("GET /sprints/{id}/next", s.handleSprintNext())
	s.router.HandleFunc("POST /sprints/{id}/advance", s.handleSprintAdvance())
	s.router.HandleFunc("POST /sprints/{id}/outcome", s.handleSprintOutcome())
	s.router.HandleFunc("DELETE /sprints/{id}", s.handleDeleteSprint())

	s.router.HandleFunc("GET /plan", s.handleGetPlan())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

func (s *Server) addSession(sess *session.Session) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.evictIdle(now)
	s.sessions[id] = &sessionHandle{s: sess, lastUsed: now}
	return id
}

func (s *Server) session(id string) (*sessionHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.clock.Now()
	if s.expired(h.lastUsed, now) {
		delete(s.sessions, id)
		return nil, false
	}
	h.lastUsed = now
	return h, true
}

func (s *Server) addSprint(sp *exam.Sprint) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.evictIdle(now)
	s.sprints[id] = &sprintHandle{sp: sp, lastUsed: now}
	return id
}

func (s *Server) sprint(id string) (*sprintHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sprints[id]
	if !ok {
		return nil, false
	}
	now := s.clock.Now()
	if s.expired(h.lastUsed, now) {
		delete(s.sprints, id)
		return nil, false
	}
	h.lastUsed = now
	return h, true
}

func (s *Server) expired(lastUsed, now time.Time) bool {
	return s.handleTTL > 0 && now.Sub(lastUsed) > s.handleTTL
}

// evictIdle drops handles unused for longer than handleTTL. s.mu must be held.
func (s *Server) evictIdle(now time.Time) {
	var evicted int
	for id, h := range s.sessions {
		if s.expired(h.lastUsed, now) {
			delete(s.sessions, id)
			evicted++
		}
	}
	for id, h := range s.sprints {
		if s.expired(h.lastUsed, now) {
			delete(s.sprints, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("evicted idle handles", "count", evicted)
	}
}

// filter builds a selection filter, loading the card index only when a card
// constraint asks for it.
func (s *Server) filter(ctx context.Context, subject string, requireCard, requireImages bool) (selection.Filter, error) {
	f := selection.Filter{Subject: subject, RequireCard: requireCard, RequireImages: requireImages}
	if requireCard || requireImages {
		idx, err := s.db.LoadCardIndex(ctx)
		if err != nil {
			return f, &domain.PersistenceError{Op: "load", Err: err}
		}
		f.Cards = idx
	}
	if err := f.Validate(s.cfg.SubjectSet()); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) saveProgress(ctx context.Context, p session.Progress) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	if err := s.db.SaveProgress(ctx, p); err != nil {
		s.logger.Warn("failed to save progress", "error", err)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidConfiguration), errors.Is(err, domain.ErrInvalidItem):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutcomeRecordingDisabled), errors.Is(err, domain.ErrDailyCapReached):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		resp.Retryable = perr.Retryable()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Join(domain.ErrInvalidConfiguration, err)
	}
	return nil
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, errors.Join(domain.ErrInvalidConfiguration, err)
	}
	return b, nil
}
