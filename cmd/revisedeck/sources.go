package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/conorfennell/revisedeck/internal/capture"
	"github.com/conorfennell/revisedeck/internal/csvimport"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/gitsource"
	"github.com/conorfennell/revisedeck/internal/storage"
	notesync "github.com/conorfennell/revisedeck/internal/sync"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSourceCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "source",
		Short: "Manage note sources scanned by sync",
	}
	command.AddCommand(newSourceAddCommand(), newSourceListCommand())
	return command
}

func newSourceAddCommand() *cobra.Command {
	var subject string
	command := &cobra.Command{
		Use:   "add PATH_OR_GIT_URL",
		Short: "Register a local directory or git repository of notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			src := storage.Source{Kind: storage.SourceLocal, Path: args[0], Subject: subject}
			if isGitURL(args[0]) {
				src.Kind = storage.SourceGit
				if _, err := gitsource.LocalPath(e.cfg.Sources.ReposDir, args[0]); err != nil {
					return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
				}
			} else {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
					return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidConfiguration, abs)
				}
				src.Path = abs
			}
			if subject != "" && !e.cfg.SubjectSet().Contains(subject) {
				return fmt.Errorf("%w: unknown subject %q", domain.ErrInvalidConfiguration, subject)
			}

			if existing, err := e.db.FindSourceByPath(cmd.Context(), src.Path); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Source already registered as #%d\n", existing.ID)
				return nil
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			id, err := e.db.InsertSource(cmd.Context(), src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s source #%d %s\n", src.Kind, id, src.Path)
			return nil
		},
	}
	command.Flags().StringVar(&subject, "subject", "", "Subject for blocks that do not name one")
	return command
}

func newSourceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sources, err := e.db.GetAllSources(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSUBJECT\tPATH\tLAST SCANNED")
			for _, s := range sources {
				scanned := "never"
				if s.LastScanned != nil {
					scanned = humanize.Time(*s.LastScanned)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Kind, s.Subject, s.Path, scanned)
			}
			return w.Flush()
		},
	}
}

func newSyncCommand() *cobra.Command {
	var parallel int
	command := &cobra.Command{
		Use:   "sync",
		Short: "Fetch git sources and capture new note blocks",
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
			start := time.Now()
			report, err := notesync.Run(cmd.Context(), e.db, notesync.Options{
				ReposDir: e.cfg.Sources.ReposDir,
				Capturer: capturer,
				Progress: cmd.ErrOrStderr(),
				Parallel: parallel,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d sources in %s: %d blocks, %d added, %d already known, %d invalid\n",
				report.Sources, time.Since(start).Round(time.Millisecond),
				report.Parsed, report.Added, report.Duplicates, report.Invalid)
			if len(report.Failed) > 0 {
				fmt.Fprintln(out, "\nErrors:")
				for _, ferr := range report.Failed {
					fmt.Fprintf(out, "- %s\n", ferr)
				}
			}
			return nil
		},
	}
	command.Flags().IntVar(&parallel, "parallel", 0, "Concurrent git fetches (0 = default)")
	return command
}

func newImportCSVCommand() *cobra.Command {
	var opts csvimport.Options
	var tz string
	command := &cobra.Command{
		Use:   "import-csv",
		Short: "Import items and cards from legacy CSV exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ItemsPath == "" && opts.CardsPath == "" {
				return fmt.Errorf("%w: pass --items and/or --cards", domain.ErrInvalidConfiguration)
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidConfiguration, tz, err)
			}
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			opts.Location = loc
			opts.Now = domain.SystemClock.Now()
			report, err := csvimport.Import(cmd.Context(), e.db, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Imported %d items (%d already present), %d cards (%d orphaned), skipped %d rows\n",
				report.ItemsImported, report.ItemsExisting, report.CardsImported, report.CardsOrphaned, report.RowsSkipped)
			return nil
		},
	}
	command.Flags().StringVar(&opts.ItemsPath, "items", "", "Items CSV file")
	command.Flags().StringVar(&opts.CardsPath, "cards", "", "Cards CSV file")
	command.Flags().StringVar(&tz, "tz", "Local", "Timezone of timestamps without an offset")
	return command
}

func isGitURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "git@") || strings.HasSuffix(s, ".git")
}
