// Package cli holds the start-up steps shared by the finmetrics binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finmetrics/internal/backend"
	"finmetrics/internal/cache"
	"finmetrics/internal/config"
	"finmetrics/internal/core"
	applog "finmetrics/internal/log"
	"finmetrics/internal/narrative"
)

const cacheCleanupInterval = time.Minute

// SetupLogger builds the process logger at the given level and installs it
// as the slog default.
func SetupLogger(level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured run store and, when AMQP is set, the run
// event publisher. Exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return result
}

// InitRunCache builds the run cache selected by CACHE_BACKEND. The returned
// stop function ends background cleanup and closes connections.
func InitRunCache(ctx context.Context, logger *applog.Logger, cfg *config.Config) (cache.Cache[core.AnalysisRun], func()) {
	if cfg.CacheBackend == "redis" {
		rc := cache.NewRedisCache[core.AnalysisRun](ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "finmetrics:run:",
			TTL:      cfg.CacheTTL,
		})
		logger.Info("Run cache initialized", "backend", "redis", "addr", cfg.RedisAddr, "healthy", rc.IsHealthy())
		return rc, func() { _ = rc.Close() }
	}

	lru := cache.NewLRUCache[core.AnalysisRun](cfg.CacheSize, cfg.CacheTTL)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(cacheCleanupInterval)
	logger.Info("Run cache initialized", "backend", "lru", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return lru, manager.Stop
}

// InitComposer returns a narrative composer. Without a Gemini key the
// composer has no generator and narrative requests answer 503.
func InitComposer(ctx context.Context, logger *applog.Logger, cfg *config.Config) *narrative.Composer {
	if !cfg.NarrativeEnabled() {
		logger.Info("Narrative generation disabled, GEMINI_API_KEY not set")
		return narrative.NewComposer(nil, cfg.NarrativeTimeout)
	}
	gen, err := narrative.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("Failed to initialize Gemini client, narratives disabled", "error", err)
		return narrative.NewComposer(nil, cfg.NarrativeTimeout)
	}
	logger.Info("Narrative generation enabled", "model", cfg.GeminiModel)
	return narrative.NewComposer(gen, cfg.NarrativeTimeout)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished or timed out.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
