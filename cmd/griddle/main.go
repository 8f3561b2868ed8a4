package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/griddle/griddle/internal/config"
	"github.com/griddle/griddle/internal/engine"
	"github.com/griddle/griddle/internal/logging"
	"github.com/griddle/griddle/internal/snapshot"
	"github.com/griddle/griddle/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"history_limit", cfg.Engine.HistoryLimit,
		"snapshot_path", cfg.Snapshot.Path,
		"autosave_interval", cfg.Snapshot.AutosaveInterval,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	// Open the snapshot store
	store, err := snapshot.Open(cfg.Snapshot.Path, slog.Default())
	if err != nil {
		slog.Error("failed to open snapshot store", "error", err, "path", cfg.Snapshot.Path)
		os.Exit(1)
	}
	defer store.Close()

	// Start the dataset engine
	eng := engine.New(engine.Options{
		QueueSize:      cfg.Engine.QueueSize,
		HistoryLimit:   cfg.Engine.HistoryLimit,
		StrictCommands: cfg.Engine.StrictCommands,
		Logger:         slog.Default(),
	})
	eng.Start()

	// Restore the last session if one was saved
	ctx := context.Background()
	if snap, err := store.Latest(); err == nil {
		if _, err := eng.Do(ctx, engine.Request{
			Type:    engine.ReqLoadExisting,
			Name:    snap.Name,
			Columns: snap.Columns,
			Rows:    snap.Rows,
		}); err != nil {
			slog.Warn("failed to restore last session", "error", err)
		} else {
			slog.Info("restored last session", "name", snap.Name, "rows", len(snap.Rows))
		}
	} else if errors.Is(err, snapshot.ErrNotFound) {
		slog.Info("no saved session, starting empty")
	} else {
		slog.Warn("could not read snapshot store", "error", err)
	}

	// Start the autosaver as a background job
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	saver := snapshot.NewAutosaver(eng, store, cfg.Snapshot.AutosaveInterval, slog.Default())
	saverDone := make(chan struct{})
	go func() {
		saver.Run(jobCtx)
		close(saverDone)
	}()

	// Create server with config
	server := web.NewServer(eng, store, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
	}

	// Drain in order: the autosaver's final flush needs the engine alive,
	// and the engine's queued work needs the store open.
	cancelJobs()
	<-saverDone
	eng.Stop()
	slog.Info("server stopped")
}
