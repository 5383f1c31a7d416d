// Package runner drives one extract-then-archive pass over a directory tree.
package runner

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"link-archiver/archiver"
	"link-archiver/changes"
	"link-archiver/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LinkSource finds links below a root directory, keyed by relative file path.
type LinkSource interface {
	ExtractAll(root string) (map[string][]string, error)
}

// Archiver submits one URL to every archive service.
type Archiver interface {
	Archive(ctx context.Context, target string) map[string]models.ServiceResult
}

// LogStore loads and persists the archive log.
type LogStore interface {
	EnsureStorageDirs() error
	Load() (*models.ArchiveLog, error)
	Save(*models.ArchiveLog) error
}

// HistoryRecorder keeps an audit trail of service outcomes.
type HistoryRecorder interface {
	Record(attempts []models.SubmissionAttempt) error
}

// Options wires a Runner. Changes and History may be nil.
type Options struct {
	Root     string
	Links    LinkSource
	Changes  changes.ChangedFileProvider
	Archiver Archiver
	Store    LogStore
	History  HistoryRecorder

	// Pause follows every link that was submitted.
	Pause time.Duration
	Sleep archiver.Sleeper

	// Out receives progress lines.
	Out    io.Writer
	Now    func() time.Time
	Logger *zap.Logger
}

// Runner owns the archive log for the duration of a pass.
type Runner struct {
	opts Options
}

// Summary describes a finished or interrupted pass.
type Summary struct {
	RunID     string
	Files     int
	Total     int
	Processed int
	Skipped   int
	Submitted int
}

// New returns a Runner, filling in defaults for optional fields.
func New(opts Options) *Runner {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Sleep == nil {
		opts.Sleep = archiver.SleepContext
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts}
}

// Run performs one pass: load the log, collect links (restricted to the
// latest change set when it is known), submit every link that no service has
// archived yet and save the log after each one.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	logger := r.opts.Logger.With(zap.String("run_id", summary.RunID))

	if err := r.opts.Store.EnsureStorageDirs(); err != nil {
		return summary, err
	}
	archiveLog, err := r.opts.Store.Load()
	if err != nil {
		return summary, err
	}

	fileLinks, err := r.opts.Links.ExtractAll(r.opts.Root)
	if err != nil {
		return summary, fmt.Errorf("failed to extract links: %w", err)
	}
	fileLinks = r.restrictToChanges(ctx, fileLinks)

	files := make([]string, 0, len(fileLinks))
	for file, links := range fileLinks {
		files = append(files, file)
		summary.Total += len(links)
	}
	sort.Strings(files)
	summary.Files = len(files)

	r.printf("Found %d YAML files with %d links to process\n", summary.Files, summary.Total)

	for _, file := range files {
		links := fileLinks[file]
		r.printf("Processing %s with %d links\n", file, len(links))

		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Processed++
			r.printf("[%d/%d] Processing: %s\n", summary.Processed, summary.Total, link)

			if archiveLog.IsArchived(link) {
				summary.Skipped++
				r.printf("  Link already archived, skipping\n")
				continue
			}

			results := r.opts.Archiver.Archive(ctx, link)
			attemptedAt := r.opts.Now()
			archiveLog.Merge(link, file, results, models.Timestamp(attemptedAt))
			summary.Submitted++

			if err := r.opts.Store.Save(archiveLog); err != nil {
				return summary, err
			}
			r.recordHistory(logger, summary.RunID, link, file, results, attemptedAt)

			if err := r.opts.Sleep(ctx, r.opts.Pause); err != nil {
				return summary, err
			}
		}
	}

	r.printf("Completed archiving %d links\n", summary.Processed)
	return summary, nil
}

// restrictToChanges keeps only files in the latest change set. An unknown or
// empty change set leaves fileLinks untouched.
func (r *Runner) restrictToChanges(ctx context.Context, fileLinks map[string][]string) map[string][]string {
	if r.opts.Changes == nil {
		return fileLinks
	}
	changed := r.opts.Changes.ChangedFiles(ctx)
	if len(changed) == 0 {
		return fileLinks
	}
	r.printf("Found %d changed YAML files\n", len(changed))

	filtered := make(map[string][]string)
	for _, file := range changed {
		if links, ok := fileLinks[file]; ok {
			filtered[file] = links
		}
	}
	return filtered
}

func (r *Runner) recordHistory(logger *zap.Logger, runID, link, file string, results map[string]models.ServiceResult, at time.Time) {
	if r.opts.History == nil {
		return
	}

	services := make([]string, 0, len(results))
	for service := range results {
		services = append(services, service)
	}
	sort.Strings(services)

	attempts := make([]models.SubmissionAttempt, 0, len(results))
	for _, service := range services {
		result := results[service]
		attempt := models.SubmissionAttempt{
			RunID:       runID,
			URL:         link,
			SourceFile:  file,
			Service:     service,
			Success:     result.Success,
			AttemptedAt: at,
		}
		if result.ArchivedURL != nil {
			attempt.ArchivedURL = *result.ArchivedURL
		}
		attempts = append(attempts, attempt)
	}

	if err := r.opts.History.Record(attempts); err != nil {
		logger.Warn("Failed to record submission history", zap.String("url", link), zap.Error(err))
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.opts.Out, format, args...)
}
