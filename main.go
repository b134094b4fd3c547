// Package main implements the mediabox media normalization sidecar.
//
// The sidecar prepares chat attachments for the PocketLLM client: it locates
// referenced media, converts it to a uniformly displayable BMP rendition,
// and maintains an on-device cache of the results. A small REST API exposes
// normalization, cached media access, and cache management.
//
// The server is configured via a JSON configuration file and supports
// optional API key authentication.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pocketllm/mediabox/internal/api"
	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/service"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run executes the server lifecycle from initialization through graceful shutdown.
func run() error {
	configFile := flag.String("config", "", "Path to config file (default: config.json)")
	port := flag.String("port", "8080", "API server port (default: 8080)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return err
	}

	initLogger(cfg)

	db, dbClose, err := setupIndexDatabase(cfg)
	if err != nil {
		return err
	}
	defer dbClose()

	svc, err := service.New(db, cfg)
	if err != nil {
		slog.Error("Service initialization failed", "error", err)
		return err
	}
	defer svc.Close()

	if err := svc.Index().Migrate(context.Background()); err != nil {
		slog.Error("Index migration failed", "error", err)
		return err
	}

	scheduler, err := service.NewScheduler(svc)
	if err != nil {
		slog.Error("Scheduler initialization failed", "error", err)
		return err
	}
	scheduler.Start()

	server := api.New(svc, Version)

	return serveUntilShutdown(server, *port, scheduler)
}

// printVersion prints the application version, commit hash, and build time.
func printVersion() {
	fmt.Printf("mediabox %s (%s)\n", Version, Commit)
	fmt.Printf("Build time: %s\n", BuildTime)
}

// initLogger initializes the global slog logger with the configured level and format.
func initLogger(cfg *config.Config) {
	level := cfg.Log.GetLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.GetFormat() == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("Logger initialized", "level", level.String(), "format", cfg.Log.GetFormat())
}

// setupIndexDatabase opens the SQLite index inside the cache directory and
// returns a cleanup function.
func setupIndexDatabase(cfg *config.Config) (*sqlx.DB, func(), error) {
	if err := os.MkdirAll(cfg.Cache.Dir, 0o700); err != nil {
		slog.Error("Cache directory creation failed", "dir", cfg.Cache.Dir, "error", err)
		return nil, nil, err
	}

	path := filepath.Join(cfg.Cache.Dir, cfg.Cache.GetIndexFile())
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		slog.Error("Index database open failed", "path", path, "error", err)
		return nil, nil, err
	}

	// The modernc driver serializes writes itself; a single connection
	// avoids table-locked errors under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("Index database ping failed", "path", path, "error", err)
		if closeErr := db.Close(); closeErr != nil {
			slog.Warn("Failed to close index database after ping error", "error", closeErr)
		}
		return nil, nil, err
	}

	slog.Info("Index database opened", "path", path)

	cleanup := func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close index database", "error", err)
		}
	}

	return db, cleanup, nil
}

// serveUntilShutdown runs the API server until a shutdown signal or error occurs.
func serveUntilShutdown(server *api.Server, port string, scheduler *service.Scheduler) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server started", "port", port)
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
		slog.Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		slog.Error("API server error", "error", err)
		return err
	}

	return gracefulShutdown(server, scheduler)
}

// gracefulShutdown performs orderly shutdown of the scheduler and server.
func gracefulShutdown(server *api.Server, scheduler *service.Scheduler) error {
	ctx := scheduler.Stop()
	select {
	case <-ctx.Done():
		if scheduler.HasJobs() {
			slog.Info("Scheduler stopped successfully")
		}
	case <-time.After(35 * time.Second):
		slog.Warn("Scheduler stop timeout, forcing shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		return err
	}

	slog.Info("Server stopped successfully")
	return nil
}
