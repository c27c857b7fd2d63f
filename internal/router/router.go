package router

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ktindi/document-pipeline-api/internal/auth"
	"github.com/ktindi/document-pipeline-api/internal/handlers"
	"github.com/ktindi/document-pipeline-api/internal/middleware"
	"github.com/ktindi/document-pipeline-api/internal/services"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

func NewRouter(docService services.DocumentService, authService *auth.Service, pollInterval time.Duration, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	docHandler := handlers.NewDocumentHandler(docService, pollInterval, logger)
	authHandler := handlers.NewAuthHandler(authService, logger)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	// Public auth routes
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	// Document endpoints, bearer auth required
	docs := api.PathPrefix("").Subrouter()
	docs.Use(auth.Middleware(authService))

	docs.HandleFunc("/upload", docHandler.UploadDocuments).Methods(http.MethodPost)
	docs.HandleFunc("/documents", docHandler.ListDocuments).Methods(http.MethodGet)
	docs.HandleFunc("/documents/stream", docHandler.StreamDocuments).Methods(http.MethodGet)
	docs.HandleFunc("/documents/{id}", docHandler.GetDocument).Methods(http.MethodGet)
	docs.HandleFunc("/documents/{id}/status", docHandler.GetDocumentStatus).Methods(http.MethodGet)
	docs.HandleFunc("/documents/{id}", docHandler.DeleteDocument).Methods(http.MethodDelete)

	return r
}
