package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/exam"
	"github.com/conorfennell/revisedeck/internal/plan"
	"github.com/conorfennell/revisedeck/internal/session"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// PrintItems writes items as an aligned table, due dates relative to now.
func PrintItems(w io.Writer, items []domain.StudyItem, now time.Time) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "Nothing to revise.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBJECT\tTOPIC\tREV\tFAIL\tHY\tDUE")
	for _, item := range items {
		due := "now"
		if item.NextDue != nil {
			due = humanize.RelTime(*item.NextDue, now, "ago", "from now")
		}
		hy := ""
		if item.HighYield {
			hy = "★"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			item.ID, item.Subject, item.Topic, item.RevisionCount, item.FailCount, hy, due)
	}
	return tw.Flush()
}

// Dashboard is everything the plan command shows.
type Dashboard struct {
	Plan      []domain.StudyItem
	WeakAreas []plan.WeakArea
	Overview  plan.Overview
	Phase     exam.Phase
	// DaysLeft is nil without an exam target date.
	DaysLeft *int
	Progress session.Progress
	Now      time.Time
}

// PrintDashboard writes the daily overview.
func PrintDashboard(w io.Writer, d Dashboard) error {
	bold := color.New(color.Bold)
	o := d.Overview

	bold.Fprintln(w, "Overview")
	fmt.Fprintf(w, "  items %s (%s with cards, %s without)\n",
		humanize.Comma(int64(o.Total)), humanize.Comma(int64(o.WithCards)), humanize.Comma(int64(o.WithoutCards)))
	fmt.Fprintf(w, "  due %d, weak %d, daily target %d\n", o.Due, o.Weak, o.DailyTarget)
	fmt.Fprintf(w, "  streak %d, completed today %d\n", d.Progress.Streak, d.Progress.CompletedOn(d.Now))
	if o.RecentFocus != "" {
		fmt.Fprintf(w, "  recent focus %s\n", o.RecentFocus)
	}
	if o.NextFocus != "" {
		fmt.Fprintf(w, "  next focus %s\n", color.New(color.FgYellow).Sprint(o.NextFocus))
	}

	phase := d.Phase.String()
	if d.DaysLeft != nil {
		phase = fmt.Sprintf("%s, %d days to exam", phase, *d.DaysLeft)
	}
	fmt.Fprintf(w, "  phase %s\n", phase)

	if len(d.WeakAreas) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Weak areas")
		for _, a := range d.WeakAreas {
			fmt.Fprintf(w, "  %s: %d\n", a.Subject, a.Count)
		}
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Today's plan")
	return PrintItems(w, d.Plan, d.Now)
}
