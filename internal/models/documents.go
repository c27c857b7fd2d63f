package models

import (
	"encoding/json"
	"time"
)

// Status is the processing state of a document. completed and failed are
// terminal; no transition leaves them.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusAnalyzing  Status = "analyzing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusAnalyzing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Document struct {
	ID            string    `json:"document_id" db:"id"`
	Owner         string    `json:"owner_username" db:"owner_username"`
	Filename      string    `json:"original_filename" db:"original_filename"`
	StoredPath    string    `json:"stored_path" db:"stored_path"`
	ContentType   string    `json:"content_type" db:"content_type"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	CurrentStatus Status    `json:"current_status" db:"current_status"`
	ErrorMessage  *string   `json:"error_message" db:"error_message"`
}

// StatusEvent is one entry in the append-only status log. Seq is assigned by
// the log at insertion time and is strictly increasing across the whole log;
// it is the sole cursor for resumable streaming.
type StatusEvent struct {
	Seq          int64           `json:"seq" db:"seq"`
	EventID      string          `json:"event_id" db:"event_id"`
	DocumentID   string          `json:"document_id" db:"document_id"`
	Status       Status          `json:"status" db:"status"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
	ErrorMessage *string         `json:"error_message" db:"error_message"`
}

type AnalysisResult struct {
	DocumentID      string          `json:"document_id"`
	Summary         string          `json:"summary"`
	KeyTopics       []string        `json:"key_topics"`
	Sentiment       string          `json:"sentiment"`
	ActionableItems []string        `json:"actionable_items"`
	RawModelOutput  json.RawMessage `json:"raw_model_output,omitempty"`
}

// LLMAnalysisResult is the validated output of the analysis collaborator.
type LLMAnalysisResult struct {
	Summary         string
	KeyTopics       []string
	Sentiment       string
	ActionableItems []string
	RawModelOutput  json.RawMessage
}

type UploadedDocument struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
	Status      Status `json:"status"`
	StoredPath  string `json:"stored_path"`
}

type UploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type UploadResponse struct {
	Message           string             `json:"message"`
	UploadedCount     int                `json:"uploaded_count"`
	UploadedDocuments []UploadedDocument `json:"uploaded_documents"`
	FailedCount       int                `json:"failed_count"`
	Errors            []UploadError      `json:"errors"`
}

type ListDocumentsResponse struct {
	Documents []Document `json:"documents"`
}

type DocumentDetail struct {
	Document       *Document       `json:"document"`
	StatusHistory  []StatusEvent   `json:"status_history"`
	AnalysisResult *AnalysisResult `json:"analysis_result"`
}

type DocumentStatusResponse struct {
	DocumentID    string  `json:"document_id"`
	CurrentStatus Status  `json:"current_status"`
	IsQueued      bool    `json:"is_queued"`
	IsProcessing  bool    `json:"is_processing"`
	ErrorMessage  *string `json:"error_message"`
}

type DeleteResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}

// StreamEventPayload is the data field of an SSE "status" event. Result is
// populated only for completed events, looked up at emission time.
type StreamEventPayload struct {
	DocumentID   string          `json:"document_id"`
	Status       Status          `json:"status"`
	Timestamp    time.Time       `json:"timestamp"`
	Metadata     json.RawMessage `json:"metadata"`
	ErrorMessage *string         `json:"error_message"`
	Result       *StreamResult   `json:"result,omitempty"`
}

type StreamResult struct {
	Summary         string   `json:"summary"`
	KeyTopics       []string `json:"key_topics"`
	Sentiment       string   `json:"sentiment"`
	ActionableItems []string `json:"actionable_items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
