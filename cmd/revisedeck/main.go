package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/conorfennell/revisedeck/internal/config"
	"github.com/conorfennell/revisedeck/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	rootCommand := newRootCommand()
	if err := rootCommand.Execute(); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "failed to execute a command: %+v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "revisedeck",
		Short:         "Spaced-repetition revision scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(rootCommand.PersistentFlags())

	rootCommand.AddCommand(
		newAddCommand(),
		newCardCommand(),
		newDueCommand(),
		newReviewCommand(),
		newSprintCommand(),
		newPlanCommand(),
		newImportCSVCommand(),
		newSourceCommand(),
		newSyncCommand(),
		newServeCommand(),
	)
	return rootCommand
}

// setupLogger configures the default logger from the log section.
func setupLogger(level, format string) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// env is what every command needs: the configuration and an open database.
type env struct {
	cfg *config.Config
	db  *storage.DB
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	slog.Debug("database opened", "path", cfg.Database.Path)
	return &env{cfg: cfg, db: db}, nil
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

