package main

import (
	"github.com/conorfennell/revisedeck/internal/cli"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/plan"
	"github.com/spf13/cobra"
)

func newPlanCommand() *cobra.Command {
	var limit int
	command := &cobra.Command{
		Use:   "plan",
		Short: "Show today's plan, weak areas and exam phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			items, err := e.db.LoadAll(ctx)
			if err != nil {
				return err
			}
			cards, err := e.db.LoadCardIndex(ctx)
			if err != nil {
				return err
			}
			progress, err := e.db.LoadProgress(ctx)
			if err != nil {
				return err
			}

			now := domain.SystemClock.Now()
			phase, err := e.cfg.Phase(now, "")
			if err != nil {
				return err
			}
			d := cli.Dashboard{
				Plan:      plan.DailyPlan(items, now, limit),
				WeakAreas: plan.WeakAreas(items),
				Overview:  plan.Summarize(items, cards, now, e.cfg.TargetBounds()),
				Phase:     phase,
				Progress:  progress,
				Now:       now,
			}
			if target, ok, _ := e.cfg.TargetDate(now.Location()); ok {
				days := plan.DaysUntil(now, target)
				d.DaysLeft = &days
			}
			return cli.PrintDashboard(cmd.OutOrStdout(), d)
		},
	}
	command.Flags().IntVar(&limit, "limit", plan.DefaultLimit, "Maximum items in the plan")
	return command
}
