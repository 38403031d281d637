package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/newsloom/janitor/app/database"
)

// Job ties one retention pass together: scan, resolve, execute,
// collect orphans, all inside a single transaction with one commit.
// On any failure the transaction rolls back and the error surfaces to
// the caller with no partial counts. Back-to-back runs with the same
// cutoff delete nothing on the second run.
type Job struct {
	store     database.RetentionStore
	cfg       Config
	scanner   *Scanner
	resolver  *Resolver
	executor  *Executor
	collector *Collector

	// now is replaceable in tests
	now func() time.Time
}

// NewJob creates a retention job for the given store and policy.
func NewJob(store database.RetentionStore, cfg Config) *Job {
	return &Job{
		store:     store,
		cfg:       cfg,
		scanner:   NewScanner(cfg.Mode),
		resolver:  NewResolver(cfg.Mode),
		executor:  NewExecutor(),
		collector: NewCollector(cfg.GracePeriod),
		now:       time.Now,
	}
}

// Run performs one retention pass and returns its report. With dryRun
// set, the pass resolves the plan, attaches it to the report and writes
// nothing.
func (j *Job) Run(ctx context.Context, dryRun bool) (*Report, error) {
	started := j.now()
	cutoff := started.UTC().Add(-j.cfg.Window)

	report := &Report{
		Cutoff: cutoff,
		Mode:   j.cfg.Mode,
		DryRun: dryRun,
	}

	slog.Info("Retention pass starting",
		"cutoff", cutoff.Format(time.RFC3339), "mode", string(j.cfg.Mode), "dry_run", dryRun)

	err := j.store.WithTx(ctx, func(tx database.RetentionTx) error {
		expired, err := j.scanner.Run(tx, cutoff)
		if err != nil {
			return err
		}

		plan, err := j.resolver.Run(tx, expired)
		if err != nil {
			return err
		}

		if dryRun {
			report.Plan = plan
			report.NewsDeleted = int64(len(plan.NewsIDs))
			report.InstagramPostsDeleted = int64(len(plan.InstagramPostIDs))
			report.PublishedDeleted = int64(len(plan.PublishedIDs))
			report.StoriesDeleted = int64(len(plan.StoryIDs))
			report.FilesDeleted = int64(len(plan.CandidateFileIDs))
			return nil
		}

		counts, err := j.executor.Run(tx, plan)
		if err != nil {
			return err
		}

		orphans, err := j.collector.Run(tx, plan.CandidateFileIDs, j.now().UTC())
		if err != nil {
			return err
		}

		report.NewsDeleted = counts.News
		report.InstagramPostsDeleted = counts.InstagramPosts
		report.PublishedDeleted = counts.Published
		report.StoriesDeleted = counts.Stories
		report.FilesDeleted = int64(len(orphans))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retention pass failed: %w", err)
	}

	report.Duration = j.now().Sub(started)

	slog.Info("Retention pass finished",
		"dry_run", dryRun,
		"news", report.NewsDeleted,
		"instagram_posts", report.InstagramPostsDeleted,
		"published", report.PublishedDeleted,
		"stories", report.StoriesDeleted,
		"files", report.FilesDeleted,
		"duration", report.Duration.String())

	return report, nil
}
