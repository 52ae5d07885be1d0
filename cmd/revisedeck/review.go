package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/conorfennell/revisedeck/internal/cli"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/exam"
	"github.com/conorfennell/revisedeck/internal/session"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newReviewCommand() *cobra.Command {
	var filter filterFlags
	command := &cobra.Command{
		Use:   "review",
		Short: "Start an interactive review session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sel, err := filter.build(cmd, e)
			if err != nil {
				return err
			}
			policy, err := e.cfg.Policy()
			if err != nil {
				return err
			}
			progress, err := e.db.LoadProgress(ctx)
			if err != nil {
				return err
			}
			s, err := session.New(e.db, policy, domain.SystemClock, session.Options{
				Filter:              sel,
				Subjects:            e.cfg.SubjectSet(),
				Interleave:          e.cfg.Review.Interleave,
				HesitationThreshold: e.cfg.Review.HesitationThreshold,
				Progress:            progress,
			})
			if err != nil {
				return err
			}
			return runLoop(ctx, cmd, e, s)
		},
	}
	filter.register(command)
	return command
}

func newSprintCommand() *cobra.Command {
	var (
		filter   filterFlags
		phase    string
		readOnly bool
	)
	command := &cobra.Command{
		Use:   "sprint",
		Short: "Work through the exam-phase subset",
		Long: `Work through the subset the exam phase selects. Without --phase the
phase follows exam.target_date. A read-only sprint only advances.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sel, err := filter.build(cmd, e)
			if err != nil {
				return err
			}
			p, err := e.cfg.Phase(domain.SystemClock.Now(), phase)
			if err != nil {
				return err
			}
			policy, err := e.cfg.Policy()
			if err != nil {
				return err
			}
			progress, err := e.db.LoadProgress(ctx)
			if err != nil {
				return err
			}
			sp, err := exam.NewSprint(e.db, exam.Config{
				Phase:                 p,
				AllowOutcomeRecording: e.cfg.Exam.AllowOutcomeRecording && !readOnly,
				Filter:                sel,
				Interleave:            e.cfg.Review.Interleave,
				DailyCap:              e.cfg.Exam.SprintDailyCap,
			}, exam.SprintOptions{
				Policy:   policy,
				Subjects: e.cfg.SubjectSet(),
				Progress: progress,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Phase %s\n", p)
			return runLoop(ctx, cmd, e, sp)
		},
	}
	filter.register(command)
	command.Flags().StringVar(&phase, "phase", "", "normal, high_yield_only, weak_and_high_yield or final_sprint")
	command.Flags().Int("daily-cap", 0, "Stop after this many items per day (0 = no cap)")
	command.Flags().BoolVar(&readOnly, "read-only", false, "Disable outcome recording")
	return command
}

func runLoop(ctx context.Context, cmd *cobra.Command, e *env, s cli.Stepper) error {
	cards, err := e.db.LoadCards(ctx)
	if err != nil {
		return err
	}
	review := cli.NewReviewCLI(cmd.InOrStdin(), cmd.OutOrStdout(), cli.ReviewOptions{
		Cards:    lo.KeyBy(cards, func(c domain.StudyCard) int64 { return c.ItemID }),
		OnRecord: e.db.SaveProgress,
	})
	_, err = review.Run(ctx, s)
	if ctx.Err() != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Received interrupt signal, exiting...")
		return nil
	}
	return err
}
