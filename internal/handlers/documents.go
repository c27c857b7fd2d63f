package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ktindi/document-pipeline-api/internal/auth"
	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/services"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

const (
	// catchUpLimit is the size of the catch-up burst sent on stream open.
	catchUpLimit = 50
	// pollPageLimit bounds one poll cycle of the stream.
	pollPageLimit = 200
	// multipartMemoryLimit is how much of a parsed form is held in memory.
	multipartMemoryLimit = 32 << 20
)

type DocumentHandler struct {
	service      services.DocumentService
	logger       *utils.Logger
	pollInterval time.Duration
}

func NewDocumentHandler(service services.DocumentService, pollInterval time.Duration, logger *utils.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:      service,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// UploadDocuments accepts a multipart batch under the "files" field. Each
// file is validated and registered independently; one bad file never aborts
// the rest of the batch.
func (h *DocumentHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.respondError(w, utils.NewUnauthorizedError("Missing caller identity"))
		return
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		h.respondError(w, utils.NewBadRequestError("Invalid form data"))
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		h.respondError(w, utils.NewBadRequestError("No files provided."))
		return
	}

	uploaded := []models.UploadedDocument{}
	uploadErrors := []models.UploadError{}

	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			uploadErrors = append(uploadErrors, models.UploadError{
				Filename: header.Filename,
				Error:    "Failed to read file.",
			})
			continue
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			uploadErrors = append(uploadErrors, models.UploadError{
				Filename: header.Filename,
				Error:    "Failed to read file.",
			})
			continue
		}

		doc, err := h.service.UploadDocument(r.Context(), owner, services.UploadFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
		if err != nil {
			uploadErrors = append(uploadErrors, models.UploadError{
				Filename: header.Filename,
				Error:    err.Error(),
			})
			continue
		}

		uploaded = append(uploaded, *doc)
	}

	resp := models.UploadResponse{
		Message:           "Files processed.",
		UploadedCount:     len(uploaded),
		UploadedDocuments: uploaded,
		FailedCount:       len(uploadErrors),
		Errors:            uploadErrors,
	}

	if len(uploaded) == 0 {
		resp.Message = "No valid files were uploaded."
		h.respondJSON(w, http.StatusBadRequest, resp)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.respondError(w, utils.NewUnauthorizedError("Missing caller identity"))
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), owner, r.URL.Query().Get("status"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.ListDocumentsResponse{Documents: docs})
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.respondError(w, utils.NewUnauthorizedError("Missing caller identity"))
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Document ID is required"))
		return
	}

	detail, err := h.service.GetDocument(r.Context(), owner, id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, detail)
}

func (h *DocumentHandler) GetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.respondError(w, utils.NewUnauthorizedError("Missing caller identity"))
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Document ID is required"))
		return
	}

	status, err := h.service.GetDocumentStatus(r.Context(), owner, id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, status)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.respondError(w, utils.NewUnauthorizedError("Missing caller identity"))
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		h.respondError(w, utils.NewBadRequestError("Document ID is required"))
		return
	}

	resp, err := h.service.DeleteDocument(r.Context(), owner, id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *DocumentHandler) respondError(w http.ResponseWriter, err error) {
	var status int
	var message string

	switch e := err.(type) {
	case *utils.AppError:
		status = e.StatusCode
		message = e.Message
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	h.logger.Error("Request error", "status", status, "error", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
