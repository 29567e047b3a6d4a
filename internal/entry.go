// Package internal provides the main application initialization and runtime logic.
package internal

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/bragi-editor/bragi/internal/api"
	"github.com/bragi-editor/bragi/internal/cache"
	"github.com/bragi-editor/bragi/internal/draftservice"
	"github.com/bragi-editor/bragi/internal/index"
	"github.com/bragi-editor/bragi/internal/mcpserver"
	"github.com/bragi-editor/bragi/internal/remote"
	"github.com/bragi-editor/bragi/internal/socket"
	"github.com/bragi-editor/bragi/internal/sse"
)

// Run starts the daemon with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("remote_enabled", cfg.Remote.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure cache directory exists.
	if err := os.MkdirAll(cfg.Cache.Path, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Initialize draft cache.
	store, err := cache.NewFS(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Remote draft store client (optional).
	var remoteClient *remote.Client
	if cfg.Remote.Enabled {
		remoteClient, err = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout)
		if err != nil {
			return fmt.Errorf("init remote client: %w", err)
		}
	}

	// Build draft service, API router, and editor socket.
	svc := draftservice.NewService(store, db, remoteClient, broker.PublishDraftEvent, draftservice.Config{
		LocalDelay:  cfg.Autosave.LocalDelay,
		RemoteDelay: cfg.Autosave.RemoteDelay,
		Logger:      logger,
	})
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)
	ws := socket.NewHandler(svc, logger)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Editor websocket.
	r.Get("/ws", ws.ServeHTTP)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start cache watcher with SSE callback.
	g.Go(func() error {
		if err := index.Watch(gCtx, db, store, cfg.Cache.Path, logger, func(kind, articleID string) {
			broker.PublishDraftEvent(kind, articleID)
		}); err != nil {
			logger.Error("watcher error", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Flush open drafts before the process exits.
		svc.Close()
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server instead of the HTTP daemon. It
// shares the cache and index with the daemon, so both can run against
// the same working directory.
func RunMCP(cfg *Config) error {
	// MCP speaks JSON-RPC on stdout; keep logs on stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Cache.Path, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	store, err := cache.NewFS(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	var remoteClient *remote.Client
	if cfg.Remote.Enabled {
		remoteClient, err = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout)
		if err != nil {
			return fmt.Errorf("init remote client: %w", err)
		}
	}

	return mcpserver.New(store, db, remoteClient).ServeStdio()
}
