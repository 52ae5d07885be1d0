package exam

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/schedule"
	"github.com/conorfennell/revisedeck/internal/session"
)

// Sprint is a cram pass over a phase's subset. Like a review session it
// suppresses items already handled until Reset. Not safe for concurrent use.
type Sprint struct {
	store    session.ItemStore
	policy   *schedule.Policy
	clock    domain.Clock
	cfg      Config
	subjects domain.SubjectSet
	logger   *slog.Logger

	state    session.State
	current  *domain.StudyItem
	seen     map[int64]struct{}
	progress session.Progress

	capDay   time.Time
	capCount int
}

// SprintOptions carries the optional collaborators of a sprint.
type SprintOptions struct {
	Policy *schedule.Policy
	Clock  domain.Clock
	// Subjects is the closed category set the filter subject must belong
	// to, also on SwitchSubject. An empty set skips the membership check.
	Subjects domain.SubjectSet
	Progress session.Progress
	Logger   *slog.Logger
}

// NewSprint validates cfg and starts an empty sprint.
func NewSprint(store session.ItemStore, cfg Config, opts SprintOptions) (*Sprint, error) {
	if err := cfg.Validate(opts.Subjects); err != nil {
		return nil, err
	}
	sp := &Sprint{
		store:    store,
		policy:   opts.Policy,
		clock:    opts.Clock,
		cfg:      cfg,
		subjects: opts.Subjects,
		logger:   opts.Logger,
		seen:     make(map[int64]struct{}),
		progress: opts.Progress,
	}
	if sp.policy == nil {
		sp.policy = schedule.DefaultPolicy()
	}
	if sp.clock == nil {
		sp.clock = domain.SystemClock
	}
	if sp.logger == nil {
		sp.logger = slog.Default()
	}
	return sp, nil
}

// Next presents the head of the sprint queue. ok is false when the phase
// subset is exhausted or the daily cap is reached.
func (sp *Sprint) Next(ctx context.Context) (domain.StudyItem, bool, error) {
	now := sp.clock.Now()
	if sp.capReached(now) {
		sp.complete()
		sp.logger.Debug("sprint daily cap reached", "cap", sp.cfg.DailyCap)
		return domain.StudyItem{}, false, nil
	}

	items, err := sp.store.LoadAll(ctx)
	if err != nil {
		return domain.StudyItem{}, false, &domain.PersistenceError{Op: "load", Err: err}
	}
	queue, err := sp.Queue(items, now)
	if err != nil {
		return domain.StudyItem{}, false, err
	}
	if len(queue) == 0 {
		sp.complete()
		sp.logger.Debug("sprint complete", "phase", sp.cfg.Phase.String(), "seen", len(sp.seen))
		return domain.StudyItem{}, false, nil
	}

	head := queue[0]
	sp.current = &head
	sp.state = session.Presenting
	sp.logger.Debug("presenting sprint item", "item_id", head.ID, "phase", sp.cfg.Phase.String(), "remaining", len(queue))
	return head, true, nil
}

// Queue returns the unseen part of the phase subset in presentation order.
func (sp *Sprint) Queue(items []domain.StudyItem, now time.Time) ([]domain.StudyItem, error) {
	selected, err := Select(items, now, sp.cfg)
	if err != nil {
		return nil, err
	}
	queue := make([]domain.StudyItem, 0, len(selected))
	for _, item := range selected {
		if _, ok := sp.seen[item.ID]; !ok {
			queue = append(queue, item)
		}
	}
	return queue, nil
}

// Advance moves past the presented item without touching its schedule.
// It reports false when nothing is presented.
func (sp *Sprint) Advance() bool {
	if sp.current == nil {
		return false
	}
	sp.seen[sp.current.ID] = struct{}{}
	sp.count(sp.clock.Now())
	sp.current = nil
	sp.state = session.Idle
	return true
}

// Record applies an outcome exactly as a review session does.
func (sp *Sprint) Record(ctx context.Context, itemID int64, outcome domain.Outcome) (domain.StudyItem, error) {
	if !sp.cfg.AllowOutcomeRecording {
		return domain.StudyItem{}, domain.ErrOutcomeRecordingDisabled
	}
	if !outcome.Valid() {
		return domain.StudyItem{}, fmt.Errorf("%w: unknown outcome %d", domain.ErrInvalidConfiguration, int(outcome))
	}
	now := sp.clock.Now()
	if sp.capReached(now) {
		return domain.StudyItem{}, domain.ErrDailyCapReached
	}

	items, err := sp.store.LoadAll(ctx)
	if err != nil {
		return domain.StudyItem{}, &domain.PersistenceError{Op: "load", Err: err}
	}
	idx := -1
	for i := range items {
		if items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.StudyItem{}, fmt.Errorf("%w: id %d", domain.ErrItemNotFound, itemID)
	}

	updated := session.ApplyOutcome(items[idx], outcome, now, sp.policy)
	next := make([]domain.StudyItem, len(items))
	copy(next, items)
	next[idx] = updated
	if err := sp.store.SaveAll(ctx, next); err != nil {
		sp.logger.Warn("failed to save sprint outcome", "item_id", itemID, "outcome", outcome.String(), "error", err)
		return domain.StudyItem{}, &domain.PersistenceError{Op: "save", Err: err}
	}

	sp.seen[itemID] = struct{}{}
	sp.count(now)
	sp.progress.Tally(now, outcome == domain.Revised)
	if sp.current != nil && sp.current.ID == itemID {
		sp.current = nil
		sp.state = session.Idle
	}
	return updated, nil
}

// Reset clears the seen set for a new pass.
func (sp *Sprint) Reset() {
	sp.seen = make(map[int64]struct{})
	sp.current = nil
	sp.state = session.Idle
}

// SwitchSubject narrows the sprint to another subject and starts a new pass.
// An unknown subject is rejected and leaves the sprint unchanged.
func (sp *Sprint) SwitchSubject(subject string) error {
	f := sp.cfg.Filter
	f.Subject = subject
	if err := f.Validate(sp.subjects); err != nil {
		return err
	}
	sp.cfg.Filter = f
	sp.Reset()
	return nil
}

// CapReached reports whether today's cap is used up.
func (sp *Sprint) CapReached() bool { return sp.capReached(sp.clock.Now()) }

// HandledToday returns the number of items counted against today's cap.
func (sp *Sprint) HandledToday() int {
	if !sp.capDay.Equal(domain.DayOf(sp.clock.Now())) {
		return 0
	}
	return sp.capCount
}

func (sp *Sprint) State() session.State { return sp.state }

func (sp *Sprint) Config() Config { return sp.cfg }

func (sp *Sprint) Current() (domain.StudyItem, bool) {
	if sp.current == nil {
		return domain.StudyItem{}, false
	}
	return *sp.current, true
}

func (sp *Sprint) Seen(id int64) bool {
	_, ok := sp.seen[id]
	return ok
}

func (sp *Sprint) SeenCount() int { return len(sp.seen) }

func (sp *Sprint) Progress() session.Progress { return sp.progress }

func (sp *Sprint) complete() {
	sp.state = session.Complete
	sp.current = nil
}

func (sp *Sprint) count(now time.Time) {
	today := domain.DayOf(now)
	if !sp.capDay.Equal(today) {
		sp.capDay = today
		sp.capCount = 0
	}
	sp.capCount++
}

func (sp *Sprint) capReached(now time.Time) bool {
	if sp.cfg.DailyCap <= 0 {
		return false
	}
	return sp.capDay.Equal(domain.DayOf(now)) && sp.capCount >= sp.cfg.DailyCap
}
