package web

import (
	"net/http"
	"time"

	"github.com/conorfennell/revisedeck/internal/capture"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/exam"
	"github.com/conorfennell/revisedeck/internal/plan"
	"github.com/conorfennell/revisedeck/internal/selection"
	"github.com/conorfennell/revisedeck/internal/session"
	notesync "github.com/conorfennell/revisedeck/internal/sync"
)

type filterRequest struct {
	Subject       string `json:"subject"`
	RequireCard   bool   `json:"require_card"`
	RequireImages bool   `json:"require_images"`
	Interleave    *bool  `json:"interleave"`
}

func (f filterRequest) interleave(def bool) bool {
	if f.Interleave == nil {
		return def
	}
	return *f.Interleave
}

type dueResponse struct {
	Items       []domain.StudyItem `json:"items"`
	DailyTarget int                `json:"daily_target"`
}

// handleGetDue lists candidates in presentation order.
func (s *Server) handleGetDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		requireCard, err := queryBool(r, "require_card", false)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		requireImages, err := queryBool(r, "require_images", false)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		interleave, err := queryBool(r, "interleave", s.cfg.Review.Interleave)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f, err := s.filter(r.Context(), q.Get("subject"), requireCard, requireImages)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		items, err := s.db.LoadAll(r.Context())
		if err != nil {
			s.writeError(w, r, &domain.PersistenceError{Op: "load", Err: err})
			return
		}
		now := s.clock.Now()
		due, err := selection.DueItems(items, now, f, interleave)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		bounds := s.cfg.TargetBounds()
		writeJSON(w, http.StatusOK, dueResponse{
			Items:       nonNilItems(due),
			DailyTarget: selection.DailyTarget(items, now, bounds.Ceiling, bounds.Floor),
		})
	}
}

type itemRequest struct {
	Subject   string `json:"subject"`
	Topic     string `json:"topic"`
	Trigger   string `json:"trigger"`
	PYQYears  string `json:"pyq_years"`
	HighYield bool   `json:"high_yield"`
}

type itemResponse struct {
	Item       domain.StudyItem   `json:"item"`
	Duplicates []domain.StudyItem `json:"duplicates"`
}

// handlePostItem captures a new item.
func (s *Server) handlePostItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeMu.Lock()
		res, err := s.capturer.Add(r.Context(), s.db, capture.Input{
			Subject:   req.Subject,
			Topic:     req.Topic,
			Trigger:   req.Trigger,
			PYQYears:  req.PYQYears,
			HighYield: req.HighYield,
		}, s.clock.Now())
		s.writeMu.Unlock()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info("captured item", "item_id", res.Item.ID, "subject", res.Item.Subject, "duplicates", len(res.Duplicates))
		writeJSON(w, http.StatusCreated, itemResponse{Item: res.Item, Duplicates: nonNilItems(res.Duplicates)})
	}
}

type createdResponse struct {
	ID    string `json:"id"`
	Phase string `json:"phase,omitempty"`
}

type nextResponse struct {
	Item      *domain.StudyItem `json:"item,omitempty"`
	Complete  bool              `json:"complete"`
	Seen      int               `json:"seen"`
	Completed int               `json:"completed,omitempty"`
}

type outcomeRequest struct {
	ItemID  int64  `json:"item_id"`
	Outcome string `json:"outcome"`
}

type outcomeResponse struct {
	Item     domain.StudyItem `json:"item"`
	Progress session.Progress `json:"progress"`
}

// handlePostSession starts a review session.
func (s *Server) handlePostSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req filterRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		f, err := s.filter(r.Context(), req.Subject, req.RequireCard, req.RequireImages)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		progress, err := s.db.LoadProgress(r.Context())
		if err != nil {
			s.writeError(w, r, &domain.PersistenceError{Op: "load", Err: err})
			return
		}
		sess, err := session.New(s.db, s.policy, s.clock, session.Options{
			Filter:              f,
			Subjects:            s.cfg.SubjectSet(),
			Interleave:          req.interleave(s.cfg.Review.Interleave),
			HesitationThreshold: s.cfg.Review.HesitationThreshold,
			Progress:            progress,
			Logger:              s.logger,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, createdResponse{ID: s.addSession(sess)})
	}
}

// handleSessionNext presents the next item of a session.
func (s *Server) handleSessionNext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := s.session(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()

		item, ok, err := h.s.Next(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := nextResponse{Complete: !ok, Seen: h.s.SeenCount(), Completed: h.s.Completed()}
		if ok {
			resp.Item = &item
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleSessionOutcome records an outcome in a session.
func (s *Server) handleSessionOutcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := s.session(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		var req outcomeRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		outcome, err := domain.ParseOutcome(req.Outcome)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		s.writeMu.Lock()
		item, err := h.s.Record(r.Context(), req.ItemID, outcome)
		s.writeMu.Unlock()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.saveProgress(r.Context(), h.s.Progress())
		writeJSON(w, http.StatusOK, outcomeResponse{Item: item, Progress: h.s.Progress()})
	}
}

// handleDeleteSession ends a session.
func (s *Server) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.mu.Lock()
		_, ok := s.sessions[id]
		delete(s.sessions, id)
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type sprintRequest struct {
	filterRequest
	Phase                 string `json:"phase"`
	AllowOutcomeRecording *bool  `json:"allow_outcome_recording"`
	DailyCap              *int   `json:"daily_cap"`
}

// handlePostSprint starts an exam sprint. Without an explicit phase the
// phase follows the configured target date.
func (s *Server) handlePostSprint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sprintRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		now := s.clock.Now()
		phase, err := s.cfg.Phase(now, req.Phase)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f, err := s.filter(r.Context(), req.Subject, req.RequireCard, req.RequireImages)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cfg := exam.Config{
			Phase:                 phase,
			AllowOutcomeRecording: s.cfg.Exam.AllowOutcomeRecording,
			Filter:                f,
			Interleave:            req.interleave(s.cfg.Review.Interleave),
			DailyCap:              s.cfg.Exam.SprintDailyCap,
		}
		if req.AllowOutcomeRecording != nil {
			cfg.AllowOutcomeRecording = *req.AllowOutcomeRecording
		}
		if req.DailyCap != nil {
			cfg.DailyCap = *req.DailyCap
		}
		progress, err := s.db.LoadProgress(r.Context())
		if err != nil {
			s.writeError(w, r, &domain.PersistenceError{Op: "load", Err: err})
			return
		}
		sp, err := exam.NewSprint(s.db, cfg, exam.SprintOptions{
			Policy:   s.policy,
			Clock:    s.clock,
			Subjects: s.cfg.SubjectSet(),
			Progress: progress,
			Logger:   s.logger,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, createdResponse{ID: s.addSprint(sp), Phase: phase.String()})
	}
}

type sprintNextResponse struct {
	nextResponse
	CapReached   bool `json:"cap_reached"`
	HandledToday int  `json:"handled_today"`
}

// handleSprintNext presents the next sprint item.
func (s *Server) handleSprintNext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := s.sprint(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()

		item, ok, err := h.sp.Next(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := sprintNextResponse{
			nextResponse: nextResponse{Complete: !ok, Seen: h.sp.SeenCount()},
			CapReached:   h.sp.CapReached(),
			HandledToday: h.sp.HandledToday(),
		}
		if ok {
			resp.Item = &item
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleSprintAdvance skips past the presented item without recording.
func (s *Server) handleSprintAdvance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := s.sprint(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if !h.sp.Advance() {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "no item is presented"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSprintOutcome records an outcome in a sprint that allows it.
func (s *Server) handleSprintOutcome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := s.sprint(r.PathValue("id"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		var req outcomeRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		outcome, err := domain.ParseOutcome(req.Outcome)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		s.writeMu.Lock()
		item, err := h.sp.Record(r.Context(), req.ItemID, outcome)
		s.writeMu.Unlock()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.saveProgress(r.Context(), h.sp.Progress())
		writeJSON(w, http.StatusOK, outcomeResponse{Item: item, Progress: h.sp.Progress()})
	}
}

// handleDeleteSprint ends a sprint.
func (s *Server) handleDeleteSprint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.mu.Lock()
		_, ok := s.sprints[id]
		delete(s.sprints, id)
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type planResponse struct {
	Plan      []domain.StudyItem `json:"plan"`
	WeakAreas []plan.WeakArea    `json:"weak_areas"`
	Overview  plan.Overview      `json:"overview"`
	Phase     string             `json:"phase"`
	DaysLeft  *int               `json:"days_left,omitempty"`
	Streak    int                `json:"streak"`
	Today     int                `json:"completed_today"`
}

// handleGetPlan renders the dashboard.
func (s *Server) handleGetPlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		items, err := s.db.LoadAll(ctx)
		if err != nil {
			s.writeError(w, r, &domain.PersistenceError{Op: "load", Err: err})
			return
		}
		cards, err := s.db.LoadCardIndex(ctx)
		if err != nil {
			s.writeError(w, r, &domain.PersistenceError{Op: "load", Err: err})
			return
		}
		progress, err := s.db.LoadProgress(ctx)
		if err != nil {
			s.writeError(w, r, &domain.PersistenceError{Op: "load", Err: err})
			return
		}

		now := s.clock.Now()
		phase, err := s.cfg.Phase(now, "")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := planResponse{
			Plan:      nonNilItems(plan.DailyPlan(items, now, plan.DefaultLimit)),
			WeakAreas: plan.WeakAreas(items),
			Overview:  plan.Summarize(items, cards, now, s.cfg.TargetBounds()),
			Phase:     phase.String(),
			Streak:    progress.Streak,
			Today:     progress.CompletedOn(now),
		}
		if resp.WeakAreas == nil {
			resp.WeakAreas = []plan.WeakArea{}
		}
		if target, ok, _ := s.cfg.TargetDate(now.Location()); ok {
			days := plan.DaysUntil(now, target)
			resp.DaysLeft = &days
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type syncResponse struct {
	Sources    int      `json:"sources"`
	Parsed     int      `json:"parsed"`
	Added      int      `json:"added"`
	Duplicates int      `json:"duplicates"`
	Invalid    int      `json:"invalid"`
	Errors     []string `json:"errors"`
	Took       string   `json:"took"`
}

// handlePostSync triggers a manual sync. It runs in the foreground so the
// caller waits for the report.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.writeMu.Lock()
		report, err := notesync.Run(r.Context(), s.db, s.syncOpts)
		s.writeMu.Unlock()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := syncResponse{
			Sources:    report.Sources,
			Parsed:     report.Parsed,
			Added:      report.Added,
			Duplicates: report.Duplicates,
			Invalid:    report.Invalid,
			Errors:     []string{},
			Took:       time.Since(start).Round(time.Millisecond).String(),
		}
		for _, e := range report.Failed {
			resp.Errors = append(resp.Errors, e.Error())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func nonNilItems(items []domain.StudyItem) []domain.StudyItem {
	if items == nil {
		return []domain.StudyItem{}
	}
	return items
}
