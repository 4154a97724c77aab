package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/DYAI2025/sentiment-analyzer-frontend/config"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/app"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/clients"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/logging"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/monitoring"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/store"
	"github.com/DYAI2025/sentiment-analyzer-frontend/internal/web"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	platform, err := clients.NewPlatform(cfg)
	if err != nil {
		slog.Error("[Main] Failed to initialize platform clients", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := platform.Storage.EnsureBucket(ctx); err != nil {
		slog.Error("[Main] Failed to ensure document bucket", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// A dead change feed is not fatal: uploads and lookups still work, live
	// updates are simply absent for this session.
	if err := platform.Realtime.Connect(ctx); err != nil {
		slog.Warn("[Main] Change feed unavailable at startup",
			slog.String("error", err.Error()))
	}
	defer platform.Realtime.Close()

	jobStore := store.NewJobStore(platform.Rest, platform.Storage, cfg.UserID)

	platformUp := &atomic.Bool{}
	platformUp.Store(true)
	go monitoring.MonitorPlatformHealth(ctx, platform.Rest, platformUp)

	hub := web.NewHub()
	hub.Start(ctx)

	orchestrator := app.New(jobStore, platform.Realtime, hub, hub, cfg.MaxUploadBytes)
	orchestrator.Start(ctx)
	defer orchestrator.Shutdown()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      web.NewServer(orchestrator, hub, cfg.MaxUploadBytes, platformUp).Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("[Main] Frontend listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] Server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	slog.Info("[Main] Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Main] Forced shutdown", slog.String("error", err.Error()))
	}

	slog.Info("[Main] Frontend exited")
}
