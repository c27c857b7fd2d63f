package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ktindi/document-pipeline-api/internal/analyzer"
	"github.com/ktindi/document-pipeline-api/internal/auth"
	"github.com/ktindi/document-pipeline-api/internal/config"
	"github.com/ktindi/document-pipeline-api/internal/db"
	"github.com/ktindi/document-pipeline-api/internal/extractor"
	"github.com/ktindi/document-pipeline-api/internal/queue"
	"github.com/ktindi/document-pipeline-api/internal/repository"
	"github.com/ktindi/document-pipeline-api/internal/router"
	"github.com/ktindi/document-pipeline-api/internal/services"
	"github.com/ktindi/document-pipeline-api/internal/storage"
	"github.com/ktindi/document-pipeline-api/internal/utils"
	"github.com/ktindi/document-pipeline-api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Initialize database
	database, err := db.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	// Run migrations
	if err := db.RunMigrations(database); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize stores
	docRepo := repository.NewDocumentRepository(database)
	eventRepo := repository.NewEventRepository(database)
	analysisRepo := repository.NewAnalysisRepository(database)

	// Initialize file storage
	var store storage.Storage
	switch cfg.StorageBackend {
	case "s3":
		store, err = storage.NewS3Storage(cfg)
	default:
		store, err = storage.NewLocalStorage(cfg.UploadsDir)
	}
	if err != nil {
		logger.Fatal("Failed to initialize storage", "error", err)
	}

	// Initialize collaborators and the processing pipeline
	textExtractor := extractor.New(store)
	llmAnalyzer := analyzer.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger)
	jobQueue := queue.NewJobQueue()

	docWorker := worker.New(jobQueue, docRepo, eventRepo, analysisRepo, textExtractor, llmAnalyzer, logger.Component("worker"))

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	// Re-enqueue documents left over from a previous run before the worker
	// starts consuming.
	if err := docWorker.RecoverInterrupted(workerCtx); err != nil {
		logger.Fatal("Failed to recover interrupted documents", "error", err)
	}

	go docWorker.Run(workerCtx)

	// Initialize document service
	docService := services.NewService(docRepo, eventRepo, analysisRepo, store, jobQueue, docWorker, cfg.MaxFileSize, logger)

	// Auth boundary
	authService := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry, cfg.AuthUsername, cfg.AuthPassword)

	// Setup HTTP router
	handler := router.NewRouter(docService, authService, cfg.StreamPollInterval, logger)

	// Create HTTP server. No write timeout: the SSE stream stays open until
	// the client disconnects.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
