package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"go.opentelemetry.io/otel"

	"github.com/hsnksc/mp4totext-backend/internal/api"
	"github.com/hsnksc/mp4totext-backend/internal/config"
	"github.com/hsnksc/mp4totext-backend/internal/db"
	"github.com/hsnksc/mp4totext-backend/internal/ledger"
	"github.com/hsnksc/mp4totext-backend/internal/logger"
	"github.com/hsnksc/mp4totext-backend/internal/metrics"
	"github.com/hsnksc/mp4totext-backend/internal/middleware"
	"github.com/hsnksc/mp4totext-backend/internal/sentry"
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
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env, cfg.OtelExporterOTLPEndpoint, nil)
		if err != nil {
			slog.Warn("Failed to init telemetry", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	// Initialize Sentry
	sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion)
	if cfg.SentryDSN != "" {
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

	// Asynq client for enqueuing tasks
	asynqClient := worker.NewClient(cfg.RedisURL)
	defer asynqClient.Close()

	storageClient := storage.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, "media")

	// API handlers
	apiServer := api.NewServer(cfg, st, ledgerSvc, asynqClient, storageClient)

	// Router
	r := chi.NewRouter()

	// Middleware
	r.Use(otelchi.Middleware(cfg.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(sentry.HTTPMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg))
		r.Post("/api/transcriptions", apiServer.HandleSubmitTranscription)
		r.Get("/api/transcriptions", apiServer.HandleListTranscriptions)
		r.Get("/api/transcriptions/{id}", apiServer.HandleGetTranscription)
		r.Get("/api/credits/balance", apiServer.HandleGetBalance)
		r.Get("/api/credits/history", apiServer.HandleCreditHistory)
		r.Post("/api/credits/purchase", apiServer.HandlePurchaseCredits)
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	slog.Info("Starting server", "port", port)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
