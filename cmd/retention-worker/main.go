package main

import (
	"context"
	"time"

	"finmetrics/internal/cli"
	applog "finmetrics/internal/log"
	"finmetrics/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentRetention)

	logger.Info("Starting retention-worker",
		"retention", cfg.RunRetention,
		"schedule", cfg.RetentionSchedule,
		"backend", cfg.DataBackend)

	result := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	job := worker.NewRetentionJob(result.Backend, cfg.RunRetention)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	// Run initial sweep on startup
	if n, err := job.RunOnce(ctx); err != nil {
		logger.Error("Initial retention sweep failed", "error", err)
	} else {
		logger.Info("Initial retention sweep complete", applog.FieldPurged, n)
	}

	scheduler, err := job.Schedule(ctx, cfg.RetentionSchedule)
	if err != nil {
		logger.Error("Failed to schedule retention sweeps", "error", err)
		return
	}
	scheduler.Start()

	cli.WaitForShutdown(ctx, done)

	// Wait for a sweep in progress to finish.
	<-scheduler.Stop().Done()
	logger.Info("Retention-worker shutdown complete")
}
