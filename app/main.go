package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newsloom/janitor/app/api"
	"github.com/newsloom/janitor/app/cfg"
	"github.com/newsloom/janitor/app/database"
	"github.com/newsloom/janitor/app/metrics"
	"github.com/newsloom/janitor/app/retention"
	"github.com/newsloom/janitor/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Newsloom Janitor", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Connected to database", "host", appCfg.DBHost, "name", appCfg.DBName)

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	mode, err := retention.ParseMode(appCfg.RetentionMode)
	if err != nil {
		slog.Error("Failed to parse retention mode", "error", err)
		os.Exit(1)
	}

	retentionRepo := database.NewRetentionRepository(db)
	statsRepo := database.NewStatsRepository(db)

	job := retention.NewJob(retentionRepo, retention.Config{
		Window:      time.Duration(appCfg.RetentionHours) * time.Hour,
		Mode:        mode,
		GracePeriod: time.Duration(appCfg.GracePeriodMinutes) * time.Minute,
	})

	jobTimeout := time.Duration(appCfg.JobTimeoutMinutes) * time.Minute

	if appCfg.RunOnce {
		os.Exit(runOnce(job, jobTimeout, appCfg.DryRun))
	}

	scheduler := tasks.NewScheduler(job, appCfg.Schedule, jobTimeout)
	if err := scheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	apiHandler := api.NewHandler(statsRepo, job)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if next := scheduler.NextRun(); next != nil {
		slog.Info("Retention pass scheduled", "schedule", appCfg.Schedule, "next_run", next.Format(time.RFC3339))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer; it drains the task queue first
	slog.Info("Shutdown complete")
}

// runOnce executes a single retention pass and returns the process exit
// code. The report goes to stdout as JSON so the pass can drive cron
// jobs and CI checks directly.
func runOnce(job *retention.Job, timeout time.Duration, dryRun bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	report, err := job.Run(ctx, dryRun)
	metrics.ObserveRun(report, time.Since(started), err)
	if err != nil {
		slog.Error("Retention pass failed", "error", err)
		return 1
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		slog.Error("Failed to encode report", "error", err)
		return 1
	}
	fmt.Println(string(out))

	return 0
}
