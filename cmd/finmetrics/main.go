package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finmetrics/internal/cli"
	apphttp "finmetrics/internal/http"
	"finmetrics/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	// Level is not known until config is loaded; start at info and rebuild.
	logger := cli.SetupLogger("info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	ctx := context.Background()

	result := cli.InitBackend(ctx, logger, cfg)
	runCache, stopCache := cli.InitRunCache(ctx, logger, cfg)

	runs := services.NewRunService(result.Backend,
		services.WithPublisher(result.Publisher),
		services.WithCache(runCache),
		services.WithComposer(cli.InitComposer(ctx, logger, cfg)),
	)

	srv := apphttp.NewServer(runs, apphttp.Options{
		Addr:        ":" + cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	// Configure server timeouts and limits. Narrative generation may run
	// for the whole narrative timeout before the response is written.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = max(10*time.Second, cfg.NarrativeTimeout+10*time.Second)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	sigCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		stopCache()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting finmetrics server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"narratives", cfg.NarrativeEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(sigCtx, done)
	logger.Info("Server stopped gracefully")
}
