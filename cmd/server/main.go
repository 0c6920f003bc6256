package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/telepost/dicom-transfer/internal/config"
	"github.com/telepost/dicom-transfer/internal/database"
	"github.com/telepost/dicom-transfer/internal/dicomfile"
	"github.com/telepost/dicom-transfer/internal/handlers"
	"github.com/telepost/dicom-transfer/internal/middleware"
	"github.com/telepost/dicom-transfer/internal/repository"
	"github.com/telepost/dicom-transfer/internal/services"
	"github.com/telepost/dicom-transfer/internal/sessions"
	"github.com/telepost/dicom-transfer/internal/worker"
	"github.com/telepost/dicom-transfer/pkg/logger"
)

// Transfers older than this that never reached a terminal state were
// interrupted; the sweep fails them so the ledger stays consistent.
const staleTransferAge = 2 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting DICOM Transfer Service")

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Session index backing store
	var store sessions.Store
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisStore, err := sessions.NewRedisStore(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		store = redisStore
		log.Info().Msg("Redis session store initialized")
	} else {
		store = sessions.NewMemoryStore()
		log.Info().Msg("Memory session store initialized")
	}
	sessionIndex := sessions.NewIndex(store, cfg.Session.TTL)

	// Initialize repositories
	ledgerRepo := repository.NewTransferLogRepository()
	destRepo := repository.NewDestinationRepository()

	// Reconcile transfers interrupted by the previous process
	reconcileStale(ledgerRepo)

	// Worker pool for series transfers
	pool := worker.NewPool(cfg.DICOM.WorkerCount, 64)
	pool.Start(context.Background())
	defer pool.Stop()

	// Initialize services
	parser := dicomfile.NewParser()
	transferService := services.NewTransferService(ledgerRepo, destRepo, sessionIndex, pool, services.ExecRunner{}, cfg.DICOM)
	importService := services.NewImportService(parser, sessionIndex, ledgerRepo)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	dicomHandler := handlers.NewDICOMHandler(importService, transferService)
	destHandler := handlers.NewDestinationHandler(destRepo, transferService)
	logsHandler := handlers.NewTransferLogHandler(ledgerRepo)

	// Periodic sweep for stale ledger entries
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 15m", func() { reconcileStale(ledgerRepo) }); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule ledger sweep")
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API endpoints
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth.JWTSecret))

		// Import / transfer pipeline
		r.Post("/dicom/import", dicomHandler.Import)
		r.Post("/dicom/send", dicomHandler.Send)
		r.Get("/dicom/transfer-status", dicomHandler.TransferStatus)

		// Destination registry
		r.Get("/destinations", destHandler.List)
		r.Post("/destinations", destHandler.Create)
		r.Get("/destinations/{id}", destHandler.Get)
		r.Put("/destinations/{id}", destHandler.Update)
		r.Delete("/destinations/{id}", destHandler.Delete)
		r.Post("/destinations/{id}/test", destHandler.TestConnection)

		// Audit
		r.Get("/transfer-logs", logsHandler.List)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func reconcileStale(repo *repository.TransferLogRepository) {
	cutoff := time.Now().UTC().Add(-staleTransferAge)
	n, err := repo.FailStale(context.Background(), cutoff, "Transfer interrupted and never completed")
	if err != nil {
		log.Error().Err(err).Msg("Ledger reconciliation failed")
		return
	}
	if n > 0 {
		log.Warn().Int64("entries", n).Msg("Failed stale transfer log entries")
	}
}
