package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ktindi/document-pipeline-api/internal/storage"
)

// Extractor is the text-extraction collaborator consumed by the worker.
type Extractor interface {
	Extract(ctx context.Context, location, contentType string) (string, error)
}

type storageExtractor struct {
	storage storage.Storage
}

func New(store storage.Storage) Extractor {
	return &storageExtractor{storage: store}
}

// Extract downloads the stored file and extracts its text. Every failure is
// reported as an *ExtractionError.
func (e *storageExtractor) Extract(ctx context.Context, location, contentType string) (string, error) {
	if location == "" {
		return "", newExtractionError("stored file path is missing", nil)
	}

	data, err := e.storage.Download(ctx, location)
	if err != nil {
		return "", newExtractionError("stored file is missing or unreadable", err)
	}

	ext := strings.ToLower(filepath.Ext(location))
	isTXT := ext == ".txt" || contentType == "text/plain"
	isPDF := ext == ".pdf" || contentType == "application/pdf"

	var text string
	switch {
	case isTXT:
		text, err = ExtractTXT(data)
	case isPDF:
		text, err = ExtractPDF(data)
	default:
		return "", newExtractionError("unsupported document type for extraction", nil)
	}

	if err != nil {
		return "", newExtractionError("failed to extract text", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", newExtractionError("no readable text found in document", nil)
	}

	return text, nil
}
