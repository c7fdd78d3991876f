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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drywaters/recapd/internal/cache"
	"github.com/drywaters/recapd/internal/config"
	"github.com/drywaters/recapd/internal/coordinator"
	"github.com/drywaters/recapd/internal/extractor"
	"github.com/drywaters/recapd/internal/messaging"
	"github.com/drywaters/recapd/internal/server"
	"github.com/drywaters/recapd/internal/storage"
	"github.com/drywaters/recapd/internal/summarizer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up logging
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("starting recapd", "port", cfg.Port)

	ctx := context.Background()

	// Pick the store: Postgres when configured, in-memory otherwise
	var store storage.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}

		pg := storage.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
		store = pg
		slog.Info("connected to database")
	} else {
		store = storage.NewMemory()
		slog.Warn("DATABASE_URL not configured, using in-memory store")
	}
	defer store.Close()

	// Message bus and extractor runtime
	bus := messaging.New(30 * time.Second)
	runtime := extractor.NewRuntime(bus)

	// Caches over the store
	summaryCache := cache.NewSummaryCache(store, time.Duration(cfg.CacheTTLHours)*time.Hour)
	settings := cache.NewSettings(store)

	// Summarizer, honoring a pinned model from config or stored settings
	modelPin := cfg.GeminiModel
	if modelPin == "" {
		modelPin = settings.ModelPin(ctx)
	}
	gemini := summarizer.NewGemini(summarizer.WithModelPin(modelPin))

	// Coordinator
	coord := coordinator.New(gemini, summaryCache, settings, runtime, bus, coordinator.Config{
		SweepInterval: time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
	})

	// Initialize the summarizer from config or the stored key; the
	// service still starts without one and accepts a key over the API
	apiKey := cfg.GeminiAPIKey
	if apiKey == "" {
		apiKey = settings.APIKey(ctx)
	}
	if apiKey != "" {
		if err := gemini.Initialize(ctx, apiKey); err != nil {
			slog.Warn("failed to initialize Gemini summarizer", "error", err)
		} else {
			coord.MarkInitialized()
			slog.Info("Gemini summarizer enabled", "model", gemini.ModelName())
		}
	} else {
		slog.Warn("Gemini API key not configured, summarization disabled until a key is set")
	}

	// Start the cache sweeper
	coord.StartSweeper(ctx)

	// Create server
	srv := server.New(cfg, coord, runtime)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	<-shutdownChan
	slog.Info("shutting down...")

	coord.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
