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

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/backend"
	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/favicon"
	"github.com/starford/othala/internal/importer"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/snapshot"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/trash"
)

// housekeepingInterval is how often the favicon cache is collected and the
// trash table pruned.
const housekeepingInterval = 15 * time.Minute

// Run starts the application with the given options.
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
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("trash_path", cfg.Store.TrashPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize the authoritative store.
	store, err := backend.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	// Initialize the trash database.
	trashStore, err := trash.Open(cfg.Store.TrashPath, logger)
	if err != nil {
		return fmt.Errorf("init trash: %w", err)
	}
	defer trashStore.Close()

	// Start the in-memory mirror.
	model, err := bookmarks.New(ctx, store, bookmarks.Config{
		Logger:            logger,
		StashRootTitle:    cfg.Stash.RootTitle,
		StashTargetMaxAge: cfg.Stash.GroupMaxAge,
		Recorder:          trashStore,
	})
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}
	defer model.Close()

	icons := favicon.NewCache()

	// SSE broker, fed by model change signals.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	offSignal := model.OnSignal(broker.PublishSignal)
	defer offSignal()
	offStash := model.OnStashRootChange(broker.PublishStashRoot)
	defer offStash()

	// Build API router.
	apiRouter := api.NewRouter(model, trashStore, icons, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the import directory, when one is configured.
	if cfg.Import.Dir != "" {
		if err := os.MkdirAll(cfg.Import.Dir, 0o755); err != nil {
			return fmt.Errorf("create import dir: %w", err)
		}
		g.Go(func() error {
			err := importer.Watch(gCtx, importer.Config{
				Dir:    cfg.Import.Dir,
				Model:  model,
				Icons:  icons,
				Logger: logger,
				Settle: cfg.Import.Settle,
			})
			if err != nil {
				logger.Warn("importer stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Periodic tree snapshots, when a directory is configured.
	if cfg.Snapshot.Dir != "" {
		snap, err := snapshot.New(snapshot.Config{
			Dir:      cfg.Snapshot.Dir,
			Model:    model,
			Logger:   logger,
			Interval: cfg.Snapshot.Interval,
			Keep:     cfg.Snapshot.Keep,
		})
		if err != nil {
			return fmt.Errorf("init snapshots: %w", err)
		}
		g.Go(func() error {
			return snap.Run(gCtx)
		})
	}

	// Housekeeping: drop icons for URLs no longer bookmarked and trim the
	// trash table to its retention cap.
	g.Go(func() error {
		t := time.NewTicker(housekeepingInterval)
		defer t.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-t.C:
				removed := icons.GC(model.HasURL)
				pruned, err := trashStore.Prune(gCtx, cfg.Store.TrashKeep)
				if err != nil {
					logger.Warn("trash prune failed", slog.String("error", err.Error()))
				}
				logger.Debug("housekeeping done",
					slog.Int("icons_removed", removed),
					slog.Int64("trash_pruned", pruned))
			}
		}
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server over the same store and model as the
// HTTP service. Logs go to stderr; stdout carries the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	store, err := backend.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	trashStore, err := trash.Open(cfg.Store.TrashPath, logger)
	if err != nil {
		return fmt.Errorf("init trash: %w", err)
	}
	defer trashStore.Close()

	model, err := bookmarks.New(ctx, store, bookmarks.Config{
		Logger:            logger,
		StashRootTitle:    cfg.Stash.RootTitle,
		StashTargetMaxAge: cfg.Stash.GroupMaxAge,
		Recorder:          trashStore,
	})
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}
	defer model.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(model).ServeStdio()
}
