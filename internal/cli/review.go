package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/session"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Stepper is the presentation loop a review session or exam sprint exposes.
type Stepper interface {
	Next(ctx context.Context) (domain.StudyItem, bool, error)
	Record(ctx context.Context, itemID int64, outcome domain.Outcome) (domain.StudyItem, error)
	Progress() session.Progress
}

// advancer is implemented by steppers that can move on without recording.
type advancer interface {
	Advance() bool
}

// ReviewOptions configures a ReviewCLI.
type ReviewOptions struct {
	Clock domain.Clock
	// Cards are shown under their item when present.
	Cards map[int64]domain.StudyCard
	// OnRecord is called after every recorded outcome, typically to persist
	// streak progress.
	OnRecord func(ctx context.Context, p session.Progress) error
}

// Summary counts what happened in one Run.
type Summary struct {
	Revised int
	Weak    int
	Skipped int
}

// ReviewCLI drives a Stepper from line-oriented input.
type ReviewCLI struct {
	in     *bufio.Reader
	out    io.Writer
	opts   ReviewOptions
	bold   *color.Color
	italic *color.Color
	red    *color.Color
	green  *color.Color
	yellow *color.Color
}

// NewReviewCLI creates a review loop reading answers from in.
func NewReviewCLI(in io.Reader, out io.Writer, opts ReviewOptions) *ReviewCLI {
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock
	}
	return &ReviewCLI{
		in:     bufio.NewReader(in),
		out:    out,
		opts:   opts,
		bold:   color.New(color.Bold),
		italic: color.New(color.Italic),
		red:    color.New(color.FgRed),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
	}
}

// Run presents items until the stepper is exhausted, the learner quits or
// input ends.
func (r *ReviewCLI) Run(ctx context.Context, s Stepper) (Summary, error) {
	var summary Summary
	adv, canAdvance := s.(advancer)

	for ctx.Err() == nil {
		item, ok, err := s.Next(ctx)
		if err != nil {
			return summary, err
		}
		if !ok {
			r.printDone(summary, s.Progress())
			return summary, nil
		}

		r.show(item)
		if canAdvance {
			fmt.Fprint(r.out, "(r)evised / (w)eak / (n)ext / (q)uit: ")
		} else {
			fmt.Fprint(r.out, "(r)evised / (w)eak / (q)uit: ")
		}
		answer, err := r.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return summary, nil
		}
		if err != nil {
			return summary, fmt.Errorf("error reading input: %w", err)
		}

		var outcome domain.Outcome
		switch answer {
		case "r", "revised":
			outcome = domain.Revised
		case "w", "weak":
			outcome = domain.Weak
		case "n", "next":
			if canAdvance && adv.Advance() {
				summary.Skipped++
				continue
			}
			fmt.Fprintln(r.out, "Record an outcome to move on.")
			continue
		case "q", "quit":
			r.printDone(summary, s.Progress())
			return summary, nil
		default:
			fmt.Fprintf(r.out, "Unknown choice %q\n", answer)
			continue
		}

		updated, err := s.Record(ctx, item.ID, outcome)
		switch {
		case errors.Is(err, domain.ErrOutcomeRecordingDisabled):
			r.yellow.Fprintln(r.out, "This sprint is read-only. Use (n)ext.")
			continue
		case errors.Is(err, domain.ErrDailyCapReached):
			r.yellow.Fprintln(r.out, "Daily cap reached.")
			continue
		case errors.Is(err, domain.ErrPersistence):
			r.red.Fprintf(r.out, "Could not save: %v. Try again.\n", err)
			continue
		case err != nil:
			return summary, err
		}

		if outcome == domain.Revised {
			summary.Revised++
			fmt.Fprint(r.out, "✅ ")
			r.green.Fprintf(r.out, "Revised. Next due %s\n", r.due(updated))
		} else {
			summary.Weak++
			fmt.Fprint(r.out, "❌ ")
			r.red.Fprintf(r.out, "Marked weak (%d fails). Back %s\n", updated.FailCount, r.due(updated))
		}
		if r.opts.OnRecord != nil {
			if err := r.opts.OnRecord(ctx, s.Progress()); err != nil {
				return summary, err
			}
		}
	}
	return summary, ctx.Err()
}

func (r *ReviewCLI) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

func (r *ReviewCLI) show(item domain.StudyItem) {
	fmt.Fprintln(r.out)
	r.bold.Fprintf(r.out, "[%s] %s", item.Subject, item.Topic)
	if item.HighYield {
		r.yellow.Fprint(r.out, " ★ high yield")
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  %s\n", r.italic.Sprint(item.Trigger))
	if item.PYQYears != "" {
		fmt.Fprintf(r.out, "  PYQ: %s\n", item.PYQYears)
	}
	fmt.Fprintf(r.out, "  revisions %d, fails %d, due %s\n", item.RevisionCount, item.FailCount, r.due(item))

	card, ok := r.opts.Cards[item.ID]
	if !ok {
		return
	}
	if card.Title != "" {
		fmt.Fprintf(r.out, "  %s\n", r.bold.Sprint(card.Title))
	}
	for _, b := range card.Bullets {
		fmt.Fprintf(r.out, "    • %s\n", b)
	}
	if card.HasImages() {
		fmt.Fprintf(r.out, "  Images: %s\n", strings.Join(card.ImagePaths, ", "))
	}
	if card.ExternalURL != "" {
		fmt.Fprintf(r.out, "  %s\n", card.ExternalURL)
	}
}

func (r *ReviewCLI) due(item domain.StudyItem) string {
	if item.NextDue == nil {
		return "now"
	}
	return humanize.RelTime(*item.NextDue, r.opts.Clock.Now(), "ago", "from now")
}

func (r *ReviewCLI) printDone(s Summary, p session.Progress) {
	fmt.Fprintln(r.out)
	r.bold.Fprintln(r.out, "Session finished.")
	fmt.Fprintf(r.out, "  revised %d, weak %d, skipped %d\n", s.Revised, s.Weak, s.Skipped)
	fmt.Fprintf(r.out, "  streak %s, completed today %d\n",
		humanize.Comma(int64(p.Streak))+" day(s)", p.CompletedOn(r.opts.Clock.Now()))
}
