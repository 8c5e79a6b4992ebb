// cmd/shopscout/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shopscout/internal/api"
	"shopscout/internal/common/config"
	"shopscout/internal/common/database"
	"shopscout/internal/common/logger"
	"shopscout/internal/gate"
	"shopscout/internal/llm"
	"shopscout/internal/monitor"
	"shopscout/internal/pipeline"
	"shopscout/internal/pipeline/interpreter"
	"shopscout/internal/pipeline/offersearch"
	"shopscout/internal/pipeline/recommender"
	"shopscout/internal/pipeline/selector"
	"shopscout/internal/profile"
	"shopscout/internal/search"
	"shopscout/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	zapLog.Info("Starting shopscout...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level and format.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init External Service Clients ---
	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.APIs.OpenAI.BaseURL,
		APIKey:      cfg.APIs.OpenAI.APIKey,
		Model:       cfg.APIs.OpenAI.Model,
		Temperature: cfg.APIs.OpenAI.Temperature,
		Timeout:     time.Duration(cfg.APIs.OpenAI.Timeout) * time.Millisecond,
	})

	rotator, err := search.NewKeyRotator(cfg.APIs.SerpAPI.APIKeys)
	if err != nil {
		zapLog.Fatal("serpapi key rotator init failed", zap.Error(err))
	}

	var searchClient search.Client = search.NewSerpClient(rotator, log)
	searchClient = search.NewCachingClient(
		searchClient,
		rdb.GetClient(),
		time.Duration(cfg.APIs.SerpAPI.CacheTTL)*time.Second,
		log,
	)

	zapLog.Info("All external service clients initialized")

	// --- Assemble the recommendation pipeline ---
	interp := interpreter.New(llmClient, log)
	rec := recommender.New(llmClient, log)
	provider := offersearch.New(searchClient, log)
	sel, err := selector.New(llmClient, log)
	if err != nil {
		zapLog.Fatal("selector init failed", zap.Error(err))
	}
	pipe := pipeline.New(interp, rec, provider, sel, cfg.Pipeline.SearchConcurrency, log)

	st := store.NewPostgresStore(pg.DB, log)

	surpriser := profile.NewSurpriseRecommender(llmClient, log)
	synthesizer := profile.NewSynthesizer(llmClient, log)
	refresher := profile.NewRefresher(llmClient, pipe, st, log)

	g := gate.New(cfg.Gate.CooldownSeconds, cfg.Gate.MaxContext, cfg.Gate.MaxChannels)
	mon := monitor.New(g, interp, pipe, st, cfg.Pipeline.DefaultRegion, log)

	srv := api.NewServer(pipe, interp, st, surpriser, synthesizer, mon, cfg.Pipeline.DefaultRegion, log).
		WithRefresher(refresher)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
