// Package main is the entrypoint for the explainer API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/explainer/internal/api"
	"github.com/kiranshivaraju/explainer/internal/api/handler"
	mw "github.com/kiranshivaraju/explainer/internal/api/middleware"
	"github.com/kiranshivaraju/explainer/internal/api/response"
	"github.com/kiranshivaraju/explainer/internal/app"
	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/internal/config"
	"github.com/kiranshivaraju/explainer/internal/events"
	"github.com/kiranshivaraju/explainer/internal/media"
	"github.com/kiranshivaraju/explainer/internal/store"
	"github.com/kiranshivaraju/explainer/internal/video"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireServer(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Server.Env, os.Stdout, os.Getenv("EXPLAINER_DEBUG") != "")
	slog.SetDefault(logger)
	slog.Info("config loaded", "env", cfg.Server.Env, "video_api", cfg.VideoAPI.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Wire the video pipeline
	pipeline, err := app.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("create video pipeline: %w", err)
	}
	orch := pipeline.Orchestrator

	pgStore := store.NewPostgresStore(pool)
	bus := events.NewBus(events.DefaultMaxEvents, events.DefaultMaxJobs)
	videos := video.NewService(orch, pgStore, redisCache, bus, logger)

	go sweepThumbnails(ctx, cfg.Storage.ThumbnailsDir, cfg.Storage.ThumbnailMaxAge, cfg.Storage.ThumbnailSweepInt)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),

		HealthHandler:  healthHandler(pgStore, redisCache),
		MetricsHandler: promhttp.Handler(),

		SubmitVideoHandler: handler.NewSubmitVideoHandler(videos),
		ListVideosHandler:  handler.NewListVideosHandler(videos),
		GetVideoHandler:    handler.NewGetVideoHandler(videos),
		VideoEventsHandler: handler.NewVideoEventsHandler(videos),
		CancelVideoHandler: handler.NewCancelVideoHandler(videos),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := orch.Close(shutdownCtx); err != nil {
		return fmt.Errorf("stop video jobs: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// sweepThumbnails removes stale cached thumbnails once at start and then on
// every tick until ctx is done.
func sweepThumbnails(ctx context.Context, dir string, maxAge, every time.Duration) {
	sweep := func() {
		n, err := media.CleanupThumbnails(dir, maxAge, time.Now())
		if err != nil {
			slog.Warn("thumbnail cleanup failed", "dir", dir, "error", err)
			return
		}
		if n > 0 {
			slog.Info("stale thumbnails removed", "dir", dir, "count", n)
		}
	}

	sweep()
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
