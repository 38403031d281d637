package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/newsloom/janitor/app/metrics"
	"github.com/newsloom/janitor/app/retention"
)

// RetentionRunner is the slice of the retention job the task needs.
type RetentionRunner interface {
	Run(ctx context.Context, dryRun bool) (*retention.Report, error)
}

type RunRetentionTask struct {
	Task
	job    RetentionRunner
	dryRun bool
}

func NewRunRetentionTask(job RetentionRunner, dryRun bool) *RunRetentionTask {
	return &RunRetentionTask{
		Task:   NewTask(TaskTypeRunRetention),
		job:    job,
		dryRun: dryRun,
	}
}

func (t *RunRetentionTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	started := time.Now()
	report, err := t.job.Run(ctx, t.dryRun)
	metrics.ObserveRun(report, time.Since(started), err)
	if err != nil {
		return err
	}

	if report.TotalDeleted() == 0 {
		slog.Debug("Retention task completed, nothing to delete", "id", t.ID)
	} else {
		slog.Info("Retention task completed",
			"id", t.ID,
			"news", report.NewsDeleted,
			"instagram_posts", report.InstagramPostsDeleted,
			"published", report.PublishedDeleted,
			"stories", report.StoriesDeleted,
			"files", report.FilesDeleted)
	}

	return nil
}
