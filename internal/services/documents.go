package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/queue"
	"github.com/ktindi/document-pipeline-api/internal/repository"
	"github.com/ktindi/document-pipeline-api/internal/storage"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

var (
	allowedExtensions = map[string]bool{
		".pdf": true,
		".txt": true,
	}
	allowedContentTypes = map[string]bool{
		"application/pdf": true,
		"text/plain":      true,
	}
)

var metadataUploaded = json.RawMessage(`{"info": "Document uploaded."}`)

// InFlightChecker reports whether the worker has a given document claimed.
type InFlightChecker interface {
	IsCurrentlyProcessing(id string) bool
}

// UploadFile is one file from a multipart upload batch.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type DocumentService interface {
	UploadDocument(ctx context.Context, owner string, file UploadFile) (*models.UploadedDocument, error)
	ListDocuments(ctx context.Context, owner, statusFilter string) ([]models.Document, error)
	GetDocument(ctx context.Context, owner, id string) (*models.DocumentDetail, error)
	GetDocumentStatus(ctx context.Context, owner, id string) (*models.DocumentStatusResponse, error)
	DeleteDocument(ctx context.Context, owner, id string) (*models.DeleteResponse, error)

	// Stream support: owner-scoped reads of the status event log.
	RecentEvents(ctx context.Context, owner string, limit int) ([]models.StatusEvent, error)
	EventsAfter(ctx context.Context, owner string, cursor int64, limit int) ([]models.StatusEvent, error)
	AnalysisForOwner(ctx context.Context, owner, documentID string) (*models.AnalysisResult, error)
}

type documentService struct {
	docs        repository.DocumentRepository
	events      repository.EventRepository
	analysis    repository.AnalysisRepository
	storage     storage.Storage
	queue       *queue.JobQueue
	inFlight    InFlightChecker
	maxFileSize int64
	logger      *utils.Logger
}

func NewService(
	docs repository.DocumentRepository,
	events repository.EventRepository,
	analysis repository.AnalysisRepository,
	store storage.Storage,
	q *queue.JobQueue,
	inFlight InFlightChecker,
	maxFileSize int64,
	logger *utils.Logger,
) DocumentService {
	return &documentService{
		docs:        docs,
		events:      events,
		analysis:    analysis,
		storage:     store,
		queue:       q,
		inFlight:    inFlight,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// UploadDocument validates, stores and registers a single file, then
// enqueues it for processing. Validation failures come back as bad request
// AppErrors and never affect the other files in the batch.
func (s *documentService) UploadDocument(ctx context.Context, owner string, file UploadFile) (*models.UploadedDocument, error) {
	filename := filepath.Base(strings.TrimSpace(file.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, utils.NewBadRequestError("Filename is missing or invalid.")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, utils.NewBadRequestError("Invalid file type. Only .pdf and .txt files are allowed.")
	}

	if file.ContentType != "" && !allowedContentTypes[file.ContentType] {
		return nil, utils.NewBadRequestError("Invalid content type. Expected application/pdf or text/plain.")
	}

	if int64(len(file.Data)) > s.maxFileSize {
		return nil, utils.NewBadRequestError("File exceeds max size of 10MB.")
	}

	docID := utils.GenerateID()

	storedPath, err := s.storage.Upload(ctx, docID, filename, file.Data, file.ContentType)
	if err != nil {
		s.logger.Error("Failed to store uploaded file", "error", err, "filename", filename)
		return nil, utils.NewInternalError("Failed to store document")
	}

	doc := &models.Document{
		ID:            docID,
		Owner:         owner,
		Filename:      filename,
		StoredPath:    storedPath,
		ContentType:   file.ContentType,
		SizeBytes:     int64(len(file.Data)),
		CreatedAt:     time.Now().UTC(),
		CurrentStatus: models.StatusPending,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		s.logger.Error("Failed to save document metadata", "error", err, "document_id", docID)
		_ = s.storage.Delete(ctx, docID, storedPath)
		return nil, utils.NewInternalError("Failed to save document metadata")
	}

	// Seed the status log so current_status always has a matching event.
	if _, err := s.events.Append(ctx, docID, models.StatusPending, metadataUploaded, nil); err != nil {
		s.logger.Error("Failed to record pending status", "error", err, "document_id", docID)
		return nil, utils.NewInternalError("Failed to record document status")
	}

	s.queue.Enqueue(docID)

	s.logger.Info("Document uploaded",
		"document_id", docID,
		"owner", owner,
		"filename", filename,
		"size_bytes", doc.SizeBytes)

	return &models.UploadedDocument{
		DocumentID:  docID,
		Filename:    filename,
		SizeBytes:   doc.SizeBytes,
		ContentType: file.ContentType,
		Status:      models.StatusPending,
		StoredPath:  storedPath,
	}, nil
}

func (s *documentService) ListDocuments(ctx context.Context, owner, statusFilter string) ([]models.Document, error) {
	var status *models.Status
	if statusFilter != "" {
		candidate := models.Status(statusFilter)
		if !candidate.Valid() {
			allowed := []string{
				string(models.StatusAnalyzing),
				string(models.StatusCompleted),
				string(models.StatusFailed),
				string(models.StatusPending),
				string(models.StatusProcessing),
			}
			sort.Strings(allowed)
			return nil, utils.NewBadRequestError(fmt.Sprintf("Invalid status filter. Allowed values: %v", allowed))
		}
		status = &candidate
	}

	docs, err := s.docs.List(ctx, owner, status)
	if err != nil {
		s.logger.Error("Failed to list documents", "error", err, "owner", owner)
		return nil, utils.NewInternalError("Failed to list documents")
	}

	return docs, nil
}

func (s *documentService) GetDocument(ctx context.Context, owner, id string) (*models.DocumentDetail, error) {
	doc, err := s.docs.GetByIDForOwner(ctx, id, owner)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "document_id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found.")
	}

	history, err := s.events.HistoryForDocument(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get status history", "error", err, "document_id", id)
		return nil, utils.NewInternalError("Failed to retrieve status history")
	}

	analysis, err := s.analysis.GetByDocumentID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get analysis result", "error", err, "document_id", id)
		return nil, utils.NewInternalError("Failed to retrieve analysis result")
	}

	return &models.DocumentDetail{
		Document:       doc,
		StatusHistory:  history,
		AnalysisResult: analysis,
	}, nil
}

func (s *documentService) GetDocumentStatus(ctx context.Context, owner, id string) (*models.DocumentStatusResponse, error) {
	doc, err := s.docs.GetByIDForOwner(ctx, id, owner)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "document_id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found.")
	}

	return &models.DocumentStatusResponse{
		DocumentID:    id,
		CurrentStatus: doc.CurrentStatus,
		IsQueued:      s.queue.Contains(id),
		IsProcessing:  s.inFlight.IsCurrentlyProcessing(id),
		ErrorMessage:  doc.ErrorMessage,
	}, nil
}

// DeleteDocument removes a document with all of its status events and its
// analysis result, plus the stored file. A document claimed by the worker
// cannot be deleted.
func (s *documentService) DeleteDocument(ctx context.Context, owner, id string) (*models.DeleteResponse, error) {
	if s.inFlight.IsCurrentlyProcessing(id) {
		return nil, utils.NewConflictError("Document is currently processing and cannot be deleted right now.")
	}

	// Cancel the job if it has not started yet.
	s.queue.Remove(id)

	doc, err := s.docs.GetByIDForOwner(ctx, id, owner)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "document_id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found.")
	}

	if err := s.docs.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete document", "error", err, "document_id", id)
		return nil, utils.NewInternalError("Failed to delete document")
	}

	if err := s.storage.Delete(ctx, id, doc.StoredPath); err != nil {
		// The records are gone; losing the file cleanup is not fatal.
		s.logger.Warn("Failed to delete stored file", "error", err, "document_id", id)
	}

	s.logger.Info("Document deleted", "document_id", id, "owner", owner)

	return &models.DeleteResponse{
		Message:    "Document and associated data removed.",
		DocumentID: id,
	}, nil
}

func (s *documentService) RecentEvents(ctx context.Context, owner string, limit int) ([]models.StatusEvent, error) {
	return s.events.Recent(ctx, owner, limit)
}

func (s *documentService) EventsAfter(ctx context.Context, owner string, cursor int64, limit int) ([]models.StatusEvent, error) {
	return s.events.After(ctx, owner, cursor, limit)
}

func (s *documentService) AnalysisForOwner(ctx context.Context, owner, documentID string) (*models.AnalysisResult, error) {
	return s.analysis.GetForOwner(ctx, documentID, owner)
}
