package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/hsnksc/mp4totext-backend/internal/cache"
	"github.com/hsnksc/mp4totext-backend/internal/config"
	"github.com/hsnksc/mp4totext-backend/internal/db"
	"github.com/hsnksc/mp4totext-backend/internal/ledger"
	"github.com/hsnksc/mp4totext-backend/internal/logger"
	"github.com/hsnksc/mp4totext-backend/internal/metrics"
	"github.com/hsnksc/mp4totext-backend/internal/pipeline"
	"github.com/hsnksc/mp4totext-backend/internal/pricing"
	"github.com/hsnksc/mp4totext-backend/internal/sentry"
	"github.com/hsnksc/mp4totext-backend/internal/services/enhance"
	"github.com/hsnksc/mp4totext-backend/internal/services/media"
	"github.com/hsnksc/mp4totext-backend/internal/services/search"
	"github.com/hsnksc/mp4totext-backend/internal/services/storage"
	"github.com/hsnksc/mp4totext-backend/internal/store"
	"github.com/hsnksc/mp4totext-backend/internal/telemetry"
	"github.com/hsnksc/mp4totext-backend/internal/worker"
)

func main() {
	defer sentry.Recover()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	if cfg.OtelExporterOTLPEndpoint != "" {
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName+"-worker", cfg.ServiceVersion, cfg.Env, cfg.OtelExporterOTLPEndpoint, nil)
		if err != nil {
			slog.Warn("Failed to init telemetry", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName+"-worker", cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	} else if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize business metrics
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	// Initialize logger with OTel support
	logger := logger.New(cfg.Env)
	slog.SetDefault(logger) // Set as default so slog.Info() uses our handler

	// Database connection
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	st := store.NewPostgresStore(pool)
	ledgerSvc := ledger.NewService(st)

	// Redis client for notifications and operator flags
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		redisOpt = &redis.Options{Addr: cfg.RedisURL}
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	// Transcription providers
	registry := media.NewRegistry(cfg.Transcription.Provider)
	registry.Register(media.NewWhisperProvider(cfg.WhisperServerURL))
	registry.Register(media.NewGroqProvider(cfg.GroqKey))
	if cfg.WhisperXURL != "" {
		registry.Register(media.NewWhisperXProvider(cfg.WhisperXURL, cfg.WhisperXAPIKey))
	}

	// Post-processing collaborators
	enhancer := enhance.NewEnhancer(cfg.Enhancement, cfg.OpenAIKey, cfg.GroqKey)
	var searcher search.Searcher
	if cfg.TavilyAPIKey != "" {
		searcher = search.NewClient(cfg.TavilyAPIKey)
	}

	storageClient := storage.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, "media")
	notifier := worker.NewRedisNotifier(redisClient, cfg.Worker.ProgressChannel)
	flags := cache.NewFlagsCache(redisClient, media.OperatorFlags{}, 30*time.Second)

	// Terminal jobs hand their media object to the cleanup queue.
	asynqClient := worker.NewClient(cfg.RedisURL)
	defer worker.Close(asynqClient)
	janitor := worker.NewCleanupScheduler(asynqClient, time.Minute)

	orchestrator := pipeline.NewOrchestrator(pipeline.Options{
		Store:       st,
		Ledger:      ledgerSvc,
		Pricing:     pricing.NewCalculator(),
		Registry:    registry,
		Enhancer:    enhancer,
		Searcher:    searcher,
		Blobs:       storageClient,
		Janitor:     janitor,
		Notifier:    notifier,
		Flags:       flags,
		SoftTimeout: cfg.Worker.SoftTimeout,
	})

	workerMetrics, err := worker.NewWorkerMetrics()
	if err != nil {
		slog.Warn("Failed to init worker metrics", "error", err)
	}

	processor := worker.NewTranscriptionProcessor(orchestrator, storageClient, workerMetrics)

	// Asynq server
	srv := worker.NewServer(cfg.RedisURL, cfg.Worker.Concurrency)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutting down worker...")
		srv.Shutdown()
	}()

	slog.Info("Starting worker", "redis", cfg.RedisURL, "concurrency", cfg.Worker.Concurrency)

	if err := worker.Start(srv, processor.Handlers()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
