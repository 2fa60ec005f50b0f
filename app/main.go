package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feed-digest/app/ai"
	"feed-digest/app/api"
	"feed-digest/app/cfg"
	"feed-digest/app/database"
	"feed-digest/app/email"
	"feed-digest/app/feed"
	"feed-digest/app/settings"
	"feed-digest/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Feed Digest server", "version", cfg.GetVersion())

	db, err := database.NewConnection(appCfg.DBHost, appCfg.DBPort, appCfg.DBUser, appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	stg, err := settings.Load(appCfg.SettingsFile)
	if err != nil {
		slog.Error("Failed to load settings", "file", appCfg.SettingsFile, "error", err)
		os.Exit(1)
	}

	sourceCache := feed.NewSourceCache(appCfg.FeedsDir, stg.General.DefaultFrequency, stg.General.FetchFullContent)
	if err := sourceCache.Run(); err != nil {
		slog.Error("Failed to load feed definitions", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed definitions loaded", "count", sourceCache.GetSourceCount())

	feedRepo := database.NewFeedRepository(db)
	itemRepo := database.NewItemRepository(db)
	digestRepo := database.NewDigestRepository(db)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	parser := feed.NewParser()
	extractor := feed.NewContentExtractor(httpClient, appCfg.UserAgent)
	fetcher := feed.NewFetcher(httpClient, parser, extractor, feedRepo, itemRepo, appCfg.UserAgent)

	limiter := ai.NewRateLimiter()
	client := ai.NewClient(stg.AI.APIKey, stg.AI.Model, stg.AI.Temperature, stg.AI.MaxTokens, limiter)
	generator := ai.NewDigestGenerator(client, itemRepo, digestRepo, stg)
	newsletter := email.NewNewsletter(stg)

	if !client.IsConfigured() {
		slog.Warn("Generative API key not configured, digest generation is disabled")
	}

	scheduler := tasks.NewScheduler(sourceCache, feedRepo, itemRepo, digestRepo,
		fetcher, generator, newsletter, stg, appCfg.SchedulerInterval, appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)

	apiHandler := api.NewHandler(sourceCache, feedRepo, itemRepo, digestRepo,
		fetcher, generator, client, newsletter, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
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

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
