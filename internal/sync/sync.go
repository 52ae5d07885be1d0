package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/revisedeck/internal/capture"
	"github.com/conorfennell/revisedeck/internal/domain"
	"github.com/conorfennell/revisedeck/internal/gitsource"
	"github.com/conorfennell/revisedeck/internal/parser"
	"github.com/conorfennell/revisedeck/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Store is the part of the database a sync reads and writes.
type Store interface {
	LoadAll(ctx context.Context) ([]domain.StudyItem, error)
	SaveAll(ctx context.Context, items []domain.StudyItem) error
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error
}

// FetchFunc brings a git checkout at localPath up to date with repoURL.
type FetchFunc func(ctx context.Context, repoURL, localPath string) error

// Options configures a sync run.
type Options struct {
	ReposDir string
	Capturer *capture.Capturer
	Clock    domain.Clock
	// Fetch defaults to a go-git clone or pull.
	Fetch FetchFunc
	// Progress receives git transfer progress when Fetch is the default.
	Progress io.Writer
	// Parallel bounds concurrent git fetches; zero means 4.
	Parallel int
}

// Report summarizes a sync run.
type Report struct {
	Sources    int
	Parsed     int
	Added      int
	Duplicates int
	Invalid    int
	Failed     []error
}

type sourceResult struct {
	dir string
	err error
}

// Run reconciles every configured source into the item store. Git sources
// are fetched concurrently first. New blocks are inserted as new items;
// blocks whose fingerprint is already stored are skipped. Nothing is deleted.
// Per-source failures are collected in the report; only store failures
// abort the run.
func Run(ctx context.Context, store Store, opts Options) (Report, error) {
	var report Report
	if opts.Capturer == nil {
		return report, fmt.Errorf("%w: sync needs a capturer", domain.ErrInvalidConfiguration)
	}
	clock := opts.Clock
	if clock == nil {
		clock = domain.SystemClock
	}

	slog.Info("starting sync process for all sources")
	sources, err := store.GetAllSources(ctx)
	if err != nil {
		return report, &domain.PersistenceError{Op: "load", Err: err}
	}
	report.Sources = len(sources)
	if len(sources) == 0 {
		slog.Info("no sources configured, add one with `source add <path/or/url.git>`")
		return report, nil
	}

	results, err := fetchAll(ctx, sources, opts)
	if err != nil {
		return report, err
	}

	items, err := store.LoadAll(ctx)
	if err != nil {
		return report, &domain.PersistenceError{Op: "load", Err: err}
	}
	known := make(map[string]struct{}, len(items))
	for _, item := range items {
		known[capture.Fingerprint(item)] = struct{}{}
	}
	nextID := capture.NextID(items)
	added := 0

	var scanned []storage.Source
	for i, src := range sources {
		res := results[i]
		if res.err != nil {
			slog.Error("error syncing source", "id", src.ID, "path", src.Path, "error", res.err)
			report.Failed = append(report.Failed, res.err)
			continue
		}

		inputs, errs, err := collect(res.dir)
		report.Failed = append(report.Failed, errs...)
		if err != nil {
			slog.Error("error walking directory", "path", res.dir, "error", err)
			report.Failed = append(report.Failed, err)
			continue
		}
		report.Parsed += len(inputs)

		now := clock.Now()
		for _, in := range inputs {
			if in.Subject == "" {
				in.Subject = src.Subject
			}
			item, err := opts.Capturer.NewItem(in, nextID, now)
			if err != nil {
				slog.Warn("skipping invalid block", "source", src.Path, "topic", in.Topic, "error", err)
				report.Invalid++
				continue
			}
			fp := capture.Fingerprint(item)
			if _, ok := known[fp]; ok {
				report.Duplicates++
				continue
			}
			known[fp] = struct{}{}
			items = append(items, item)
			nextID++
			added++
		}
		scanned = append(scanned, src)
	}

	if added > 0 {
		if err := store.SaveAll(ctx, items); err != nil {
			return report, &domain.PersistenceError{Op: "save", Err: err}
		}
	}
	report.Added = added

	for _, src := range scanned {
		if err := store.UpdateSourceLastScanned(ctx, src.ID, clock.Now()); err != nil {
			slog.Warn("failed to update last scanned for source", "source_id", src.ID, "error", err)
		}
	}

	slog.Info("sync process complete",
		"sources", report.Sources,
		"parsed", report.Parsed,
		"added", report.Added,
		"duplicates", report.Duplicates,
		"invalid", report.Invalid,
		"errors", len(report.Failed),
	)
	return report, nil
}

// fetchAll resolves every source to a local directory, fetching git sources
// concurrently. A failed fetch is recorded against its source only.
func fetchAll(ctx context.Context, sources []storage.Source, opts Options) ([]sourceResult, error) {
	results := make([]sourceResult, len(sources))
	fetch := opts.Fetch
	if fetch == nil {
		fetch = func(ctx context.Context, repoURL, localPath string) error {
			return gitsource.Sync(ctx, repoURL, localPath, opts.Progress)
		}
	}
	reposDir := opts.ReposDir
	if reposDir == "" {
		reposDir = "repos"
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, src := range sources {
		switch src.Kind {
		case storage.SourceGit:
			localPath, err := gitsource.LocalPath(reposDir, src.Path)
			if err != nil {
				results[i].err = fmt.Errorf("determining local path for %s: %w", src.Path, err)
				continue
			}
			g.Go(func() error {
				if err := fetch(gctx, src.Path, localPath); err != nil {
					results[i].err = err
				} else {
					results[i].dir = localPath
				}
				return gctx.Err()
			})
		default:
			results[i].dir = src.Path
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// collect parses every markdown file under dir. Files that fail to parse are
// reported in errs; err is set when dir itself cannot be walked.
func collect(dir string) (inputs []capture.Input, errs []error, err error) {
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileInputs, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		inputs = append(inputs, fileInputs...)
		return nil
	})
	if errors.Is(walkErr, os.ErrNotExist) {
		return inputs, errs, fmt.Errorf("source directory %s does not exist: %w", dir, walkErr)
	}
	return inputs, errs, walkErr
}
