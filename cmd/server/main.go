// Package main is the entrypoint for the Outfitly API server.
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

	"github.com/outfitly/outfitly/internal/api"
	"github.com/outfitly/outfitly/internal/api/handler"
	mw "github.com/outfitly/outfitly/internal/api/middleware"
	"github.com/outfitly/outfitly/internal/cache"
	"github.com/outfitly/outfitly/internal/closet"
	"github.com/outfitly/outfitly/internal/config"
	"github.com/outfitly/outfitly/internal/jobs"
	"github.com/outfitly/outfitly/internal/store"
	"github.com/outfitly/outfitly/internal/stylist"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

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

	// 5. Create outfit provider
	provider, err := stylist.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create outfit provider: %w", err)
	}
	slog.Info("outfit provider initialized", "provider", provider.Name())

	// 6. Create stores and services
	pgStore := store.NewPostgresStore(pool)

	jobStore := jobs.NewMemoryStore()
	jobStore.StartSweeper(ctx, cfg.Jobs.SweepInterval, cfg.Jobs.Retention)

	stylistSvc := stylist.NewService(provider, jobStore, redisCache, cfg.AI.GenerationTimeout)
	closetSvc := closet.NewService(pgStore, redisCache)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler:       handler.NewHealthHandler(pgStore, redisCache),
		TriggerHandler:      handler.NewTriggerHandler(stylistSvc),
		PollJobHandler:      handler.NewPollJobHandler(jobStore, redisCache),
		StreamHandler:       handler.NewStreamHandler(jobStore),
		AddItemHandler:      handler.NewAddItemHandler(closetSvc),
		ListItemsHandler:    handler.NewListItemsHandler(closetSvc),
		DecideItemHandler:   handler.NewDecideItemHandler(closetSvc),
		CountsHandler:       handler.NewCountsHandler(closetSvc),
		ListWardrobeHandler: handler.NewListWardrobeHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
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

	slog.Info("server stopped gracefully")
	return nil
}
