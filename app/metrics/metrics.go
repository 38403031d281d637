package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/newsloom/janitor/app/retention"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "janitor_retention_runs_total",
		Help: "Retention passes by outcome.",
	}, []string{"status"})

	deletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "janitor_retention_deleted_rows_total",
		Help: "Rows deleted by retention passes, per entity kind.",
	}, []string{"entity"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "janitor_retention_run_duration_seconds",
		Help:    "Duration of retention passes.",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveRun records the outcome of one retention pass. Dry runs count
// as runs but contribute no deletion counts, since nothing was written.
func ObserveRun(report *retention.Report, duration time.Duration, err error) {
	runDuration.Observe(duration.Seconds())

	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return
	}
	if report.DryRun {
		runsTotal.WithLabelValues("dry_run").Inc()
		return
	}

	runsTotal.WithLabelValues("success").Inc()
	deletedTotal.WithLabelValues("news").Add(float64(report.NewsDeleted))
	deletedTotal.WithLabelValues("instagram_posts").Add(float64(report.InstagramPostsDeleted))
	deletedTotal.WithLabelValues("published").Add(float64(report.PublishedDeleted))
	deletedTotal.WithLabelValues("stories").Add(float64(report.StoriesDeleted))
	deletedTotal.WithLabelValues("files").Add(float64(report.FilesDeleted))
}
