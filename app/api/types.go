package api

import (
	"context"

	"github.com/newsloom/janitor/app/database"
	"github.com/newsloom/janitor/app/retention"
)

// RetentionRunner is the slice of the retention job the handlers need.
type RetentionRunner interface {
	Run(ctx context.Context, dryRun bool) (*retention.Report, error)
}

var _ RetentionRunner = (*retention.Job)(nil)

type Handler struct {
	stats database.StatsStore
	job   RetentionRunner
}
