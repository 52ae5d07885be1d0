package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/schedule"
	"github.com/conorfennell/revisedeck/internal/selection"
)

// State is the session's position in its presentation cycle.
type State int

const (
	Idle State = iota
	Presenting
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Presenting:
		return "presenting"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Session.
type Options struct {
	Filter selection.Filter
	// Subjects is the closed category set Filter.Subject must belong to.
	// An empty set skips the membership check.
	Subjects domain.SubjectSet
	// Interleave alternates subjects within each computed queue. The queue
	// is recomputed on every Next, so consecutive presentations may share a
	// subject while another subject still has items.
	Interleave bool
	// HesitationThreshold, when positive, turns a slow Revised into a
	// recorded failure instead of a forgiven one.
	HesitationThreshold time.Duration
	// Progress restores streak bookkeeping saved by a previous session.
	Progress Progress
	Logger   *slog.Logger
}

// Session drives one interactive review pass. It is not safe for
// concurrent use.
type Session struct {
	store  ItemStore
	policy *schedule.Policy
	clock  domain.Clock
	opts   Options
	logger *slog.Logger

	state       State
	current     *domain.StudyItem
	presentedAt time.Time
	seen        map[int64]struct{}
	completed   int
	progress    Progress
}

// New starts a session with an empty seen set.
func New(store ItemStore, policy *schedule.Policy, clock domain.Clock, opts Options) (*Session, error) {
	if err := opts.Filter.Validate(opts.Subjects); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = schedule.DefaultPolicy()
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:    store,
		policy:   policy,
		clock:    clock,
		opts:     opts,
		logger:   logger,
		seen:     make(map[int64]struct{}),
		progress: opts.Progress,
	}, nil
}

// Next presents the highest-ranked eligible item not yet seen this session.
// ok is false when nothing is left; a later call may find new work.
func (s *Session) Next(ctx context.Context) (domain.StudyItem, bool, error) {
	items, err := s.store.LoadAll(ctx)
	if err != nil {
		return domain.StudyItem{}, false, &domain.PersistenceError{Op: "load", Err: err}
	}
	now := s.clock.Now()

	queue, err := s.Queue(items, now)
	if err != nil {
		return domain.StudyItem{}, false, err
	}
	if len(queue) == 0 {
		s.state = Complete
		s.current = nil
		s.logger.Debug("session complete", "seen", len(s.seen), "completed", s.completed)
		return domain.StudyItem{}, false, nil
	}

	head := queue[0]
	if s.current == nil || s.current.ID != head.ID {
		s.presentedAt = now
	}
	s.current = &head
	s.state = Presenting
	s.logger.Debug("presenting item", "item_id", head.ID, "subject", head.Subject, "remaining", len(queue))
	return head, true, nil
}

// Queue returns the remaining presentation order for items at now.
func (s *Session) Queue(items []domain.StudyItem, now time.Time) ([]domain.StudyItem, error) {
	candidates, err := selection.SelectCandidates(items, now, s.opts.Filter)
	if err != nil {
		return nil, err
	}
	unseen := make([]domain.StudyItem, 0, len(candidates))
	for _, item := range candidates {
		if _, ok := s.seen[item.ID]; !ok {
			unseen = append(unseen, item)
		}
	}
	ordered := selection.Order(unseen)
	if s.opts.Interleave {
		ordered = selection.Interleave(ordered)
	}
	return ordered, nil
}

// Record applies outcome to the item and persists the collection. Session
// bookkeeping only advances after the save succeeds.
func (s *Session) Record(ctx context.Context, itemID int64, outcome domain.Outcome) (domain.StudyItem, error) {
	if !outcome.Valid() {
		return domain.StudyItem{}, fmt.Errorf("%w: unknown outcome %d", domain.ErrInvalidConfiguration, int(outcome))
	}

	// Re-read so a concurrent writer's changes to other items survive.
	items, err := s.store.LoadAll(ctx)
	if err != nil {
		return domain.StudyItem{}, &domain.PersistenceError{Op: "load", Err: err}
	}
	item, ok := findItem(items, itemID)
	if !ok {
		return domain.StudyItem{}, fmt.Errorf("%w: id %d", domain.ErrItemNotFound, itemID)
	}

	now := s.clock.Now()
	updated := ApplyOutcome(item, outcome, now, s.policy)
	if outcome == domain.Revised && s.hesitated(itemID, now) {
		updated.FailCount = item.FailCount + 1
	}

	if err := s.store.SaveAll(ctx, replaceItem(items, updated)); err != nil {
		s.logger.Warn("failed to save review outcome", "item_id", itemID, "outcome", outcome.String(), "error", err)
		return domain.StudyItem{}, &domain.PersistenceError{Op: "save", Err: err}
	}

	s.seen[itemID] = struct{}{}
	if outcome == domain.Revised {
		s.completed++
	}
	s.progress.Tally(now, outcome == domain.Revised)
	if s.current != nil && s.current.ID == itemID {
		s.current = nil
		s.state = Idle
	}
	s.logger.Debug("recorded outcome", "item_id", itemID, "outcome", outcome.String(), "next_due", updated.NextDue)
	return updated, nil
}

func (s *Session) hesitated(itemID int64, now time.Time) bool {
	if s.opts.HesitationThreshold <= 0 || s.current == nil || s.current.ID != itemID {
		return false
	}
	return now.Sub(s.presentedAt) > s.opts.HesitationThreshold
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Current returns the presented item, if any.
func (s *Session) Current() (domain.StudyItem, bool) {
	if s.current == nil {
		return domain.StudyItem{}, false
	}
	return *s.current, true
}

// Seen reports whether id was already handled in this session.
func (s *Session) Seen(id int64) bool {
	_, ok := s.seen[id]
	return ok
}

// SeenCount returns the size of the seen set.
func (s *Session) SeenCount() int { return len(s.seen) }

// ResetSeen clears suppression so every eligible item can be shown again.
func (s *Session) ResetSeen() {
	s.seen = make(map[int64]struct{})
	if s.state == Complete {
		s.state = Idle
	}
}

// Completed returns the number of Revised outcomes in this session.
func (s *Session) Completed() int { return s.completed }

// Progress returns the streak bookkeeping for the collaborator to persist.
func (s *Session) Progress() Progress { return s.progress }
