package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newsloom/janitor/app/database"
	"github.com/newsloom/janitor/app/metrics"
)

func NewHandler(stats database.StatsStore, job RetentionRunner) *Handler {
	return &Handler{
		stats: stats,
		job:   job,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if counts, err := h.stats.GetEntityCounts(); err == nil {
		health["news"] = counts.News
		health["files"] = counts.Files
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	counts, err := h.stats.GetEntityCounts()
	if err != nil {
		slog.Error("Database error", "operation", "get_entity_counts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	stats := gin.H{
		"media":           counts.Media,
		"feeds":           counts.Feeds,
		"news":            counts.News,
		"files":           counts.Files,
		"chosen_news":     counts.ChosenNews,
		"instagram_posts": counts.InstagramPosts,
		"published":       counts.Published,
		"stories":         counts.Stories,
	}

	oldest, newest, err := h.stats.GetNewsTimeRange()
	if err != nil {
		slog.Error("Database error", "operation", "get_news_time_range", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if oldest != nil {
		stats["oldest_published_at"] = oldest.Format(time.RFC3339)
	}
	if newest != nil {
		stats["newest_published_at"] = newest.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, stats)
}

// APIRunRetention triggers a retention pass synchronously and returns
// its report. With ?dry_run=true the pass only resolves the plan.
func (h *Handler) APIRunRetention(c *gin.Context) {
	dryRun := c.Query("dry_run") == "true"

	started := time.Now()
	report, err := h.job.Run(c.Request.Context(), dryRun)
	metrics.ObserveRun(report, time.Since(started), err)
	if err != nil {
		slog.Error("Retention pass failed", "dry_run", dryRun, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Retention pass failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// APIGetRetentionPlan resolves the current deletion plan without
// executing it.
func (h *Handler) APIGetRetentionPlan(c *gin.Context) {
	report, err := h.job.Run(c.Request.Context(), true)
	if err != nil {
		slog.Error("Plan resolution failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Plan resolution failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cutoff": report.Cutoff.Format(time.RFC3339),
		"mode":   report.Mode,
		"plan":   report.Plan,
	})
}
