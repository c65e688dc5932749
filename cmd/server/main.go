package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lysyi3m/feedsync/app/api"
	"github.com/lysyi3m/feedsync/app/cfg"
	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/fetch"
	"github.com/lysyi3m/feedsync/app/merger"
	"github.com/lysyi3m/feedsync/app/query"
	"github.com/lysyi3m/feedsync/app/service"
	"github.com/lysyi3m/feedsync/app/tasks"
)

func main() {
	config, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if config == nil {
		// --help
		return
	}

	level := config.LogLevel
	if config.Debug {
		level = "debug"
	}
	slog.SetDefault(newLogger(level))

	slog.Info("Starting feedsync", "version", config.Version)

	db, err := database.Open(config.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", config.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database ready", "path", config.DBPath)

	subscriptions, err := feed.LoadSubscriptions(config.FeedsDir)
	if err != nil {
		slog.Error("Failed to load subscriptions", "dir", config.FeedsDir, "error", err)
		db.Close()
		os.Exit(1)
	}
	if config.FeedsDir != "" {
		slog.Info("Loaded subscriptions", "dir", config.FeedsDir, "count", len(subscriptions))
	}

	worker := fetch.NewWorker(&http.Client{}, feed.NewParser(),
		fetch.WithTimeout(config.FetchTimeoutDuration()),
		fetch.WithMaxBodySize(config.MaxBodySize),
		fetch.WithUserAgent(config.UserAgent))
	orchestrator := fetch.NewOrchestrator(worker, config.WorkerCount)
	repos := db.Repositories()

	svc := service.New(repos, worker, orchestrator, merger.New(db), config.RefreshIntervalDuration(),
		service.WithBatchTimeout(config.IngestTimeoutDuration()))

	var startup []tasks.TaskInterface
	if len(subscriptions) > 0 {
		startup = append(startup, tasks.NewSeedFeedsTask(subscriptions, svc))
	}
	periodic := func() tasks.TaskInterface { return tasks.NewSyncFeedsTask(svc) }

	scheduler := tasks.NewScheduler(config.WorkerCount, config.SchedulerIntervalDuration(), periodic, startup...)
	scheduler.Start()
	slog.Info("Background scheduler started",
		"workers", config.WorkerCount,
		"interval", config.SchedulerIntervalDuration().String())

	handler := api.NewHandler(svc, query.NewEngine(repos.Entries), scheduler)

	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.WriteTimeoutDuration(),
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", config.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	slog.Info("Shutdown complete")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
