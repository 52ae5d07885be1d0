package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/conorfennell/revisedeck/internal/capture"
	"github.com/conorfennell/revisedeck/internal/cli"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/selection"
	"github.com/conorfennell/revisedeck/internal/storage"
	"github.com/spf13/cobra"
)

func newAddCommand() *cobra.Command {
	var in capture.Input
	command := &cobra.Command{
		Use:   "add",
		Short: "Capture a new study item",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			capturer, err := capture.New(e.cfg.SubjectSet())
			if err != nil {
				return err
			}
			res, err := capturer.Add(cmd.Context(), e.db, in, domain.SystemClock.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added #%d [%s] %s\n", res.Item.ID, res.Item.Subject, res.Item.Topic)
			for _, d := range res.Duplicates {
				fmt.Fprintf(out, "  similar: #%d [%s] %s\n", d.ID, d.Subject, d.Topic)
			}
			return nil
		},
	}
	command.Flags().StringVarP(&in.Subject, "subject", "s", "", "Subject category")
	command.Flags().StringVarP(&in.Topic, "topic", "t", "", "Topic title")
	command.Flags().StringVarP(&in.Trigger, "trigger", "r", "", "Recall trigger")
	command.Flags().StringVar(&in.PYQYears, "pyq", "", "Past-paper years, e.g. 2019,2021")
	command.Flags().BoolVar(&in.HighYield, "high-yield", false, "Mark as high yield")
	return command
}

func newCardCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "card",
		Short: "Manage study cards attached to items",
	}
	command.AddCommand(newCardSetCommand(), newCardRemoveCommand())
	return command
}

func newCardSetCommand() *cobra.Command {
	var card domain.StudyCard
	var bullets, images []string
	var fromText string
	command := &cobra.Command{
		Use:   "set ITEM_ID",
		Short: "Create or replace the card of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := e.db.FindItem(cmd.Context(), id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("%w: id %d", domain.ErrItemNotFound, id)
				}
				return err
			}
			card.ItemID = id
			card.Bullets = append(bullets, capture.GenerateBullets(fromText, capture.DefaultMaxBullets)...)
			card.ImagePaths = images
			card.CreatedAt = domain.SystemClock.Now()
			if err := e.db.UpsertCard(cmd.Context(), card); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card saved for #%d\n", id)
			return nil
		},
	}
	command.Flags().StringVar(&card.Title, "title", "", "Card title")
	command.Flags().StringArrayVar(&bullets, "bullet", nil, "Bullet point (repeatable)")
	command.Flags().StringVar(&fromText, "from-text", "", "Derive bullets from free text, split on sentences and lines")
	command.Flags().StringArrayVar(&images, "image", nil, "Image path (repeatable)")
	command.Flags().StringVar(&card.ExternalURL, "url", "", "External reference")
	return command
}

func newCardRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ITEM_ID",
		Short: "Remove the card of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.db.DeleteCard(cmd.Context(), id)
		},
	}
}

type filterFlags struct {
	subject       string
	requireCard   bool
	requireImages bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subject, "subject", domain.AllSubjects, "Restrict to one subject")
	cmd.Flags().BoolVar(&f.requireCard, "require-card", false, "Only items with a study card")
	cmd.Flags().BoolVar(&f.requireImages, "require-images", false, "Only items whose card has images")
	cmd.Flags().Bool("interleave", true, "Round-robin across subjects")
}

func (f *filterFlags) build(cmd *cobra.Command, e *env) (selection.Filter, error) {
	sel := selection.Filter{Subject: f.subject, RequireCard: f.requireCard, RequireImages: f.requireImages}
	if f.requireCard || f.requireImages {
		idx, err := e.db.LoadCardIndex(cmd.Context())
		if err != nil {
			return sel, err
		}
		sel.Cards = idx
	}
	if err := sel.Validate(e.cfg.SubjectSet()); err != nil {
		return sel, err
	}
	return sel, nil
}

func newDueCommand() *cobra.Command {
	var filter filterFlags
	command := &cobra.Command{
		Use:   "due",
		Short: "List items to revise now, in presentation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sel, err := filter.build(cmd, e)
			if err != nil {
				return err
			}
			items, err := e.db.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			now := domain.SystemClock.Now()
			due, err := selection.DueItems(items, now, sel, e.cfg.Review.Interleave)
			if err != nil {
				return err
			}
			bounds := e.cfg.TargetBounds()
			fmt.Fprintf(cmd.OutOrStdout(), "%d to revise, daily target %d\n\n",
				len(due), selection.DailyTarget(items, now, bounds.Ceiling, bounds.Floor))
			return cli.PrintItems(cmd.OutOrStdout(), due, now)
		},
	}
	filter.register(command)
	return command
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid item id %q", domain.ErrInvalidConfiguration, s)
	}
	return id, nil
}
