package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neurafeed/neurafeed/app/ai"
	"github.com/neurafeed/neurafeed/app/api"
	"github.com/neurafeed/neurafeed/app/cfg"
	"github.com/neurafeed/neurafeed/app/database"
	"github.com/neurafeed/neurafeed/app/feed"
	"github.com/neurafeed/neurafeed/app/interest"
	"github.com/neurafeed/neurafeed/app/notify"
	"github.com/neurafeed/neurafeed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting NeuraFeed", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Database initialization failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database ready", "path", appCfg.DBPath)

	userRepo := database.NewUserRepository(db)
	sourceRepo := database.NewSourceRepository(db)
	articleRepo := database.NewArticleRepository(db)

	httpClient := &http.Client{Timeout: time.Duration(appCfg.FetchTimeout) * time.Second}

	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent)
	parser := feed.NewParser()
	extractor := feed.NewContentExtractor(httpClient, appCfg.UserAgent, appCfg.ExtractMinLength)

	gate := ai.NewRateGate(time.Duration(appCfg.AICooldown)*time.Second, appCfg.AIMaxCalls)
	engine := ai.NewEngine(
		ai.NewClient(httpClient, appCfg.AIAPIURL, appCfg.AIAPIKey, appCfg.AIModel),
		gate,
		appCfg.AIMinContentLength,
		appCfg.AIMaxPromptLength,
	)

	notifier := notify.NewNotifier(
		&http.Client{Timeout: time.Duration(appCfg.NotifyTimeout) * time.Second},
		appCfg.TelegramBotToken,
	)
	if !notifier.Enabled() {
		slog.Info("Telegram notifications disabled (TELEGRAM_BOT_TOKEN not set)")
	}

	tracker := interest.NewTracker(userRepo)

	pipeline := tasks.NewPipeline(
		sourceRepo, articleRepo, userRepo,
		fetcher, parser, extractor, engine, notifier,
		tasks.PipelineOptions{
			FetchTimeout:   time.Duration(appCfg.FetchTimeout) * time.Second,
			NotifyTimeout:  time.Duration(appCfg.NotifyTimeout) * time.Second,
			EnrichOnIngest: appCfg.EnrichOnIngest,
		},
	)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	scheduler := tasks.NewScheduler(pipeline, time.Duration(appCfg.SchedulerInterval)*time.Second)
	scheduler.Start(schedulerCtx)

	handler := api.NewHandler(
		userRepo, sourceRepo, articleRepo,
		fetcher, parser, engine, tracker, notifier,
		api.NewAuth(appCfg.JWTSecret),
		api.HandlerOptions{
			FetchTimeout: time.Duration(appCfg.FetchTimeout) * time.Second,
			Version:      appCfg.Version,
		},
	)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	stopScheduler()
	scheduler.Wait()

	slog.Info("Shutdown complete")
}
