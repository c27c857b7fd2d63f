package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type localStorage struct {
	baseDir string
}

// NewLocalStorage stores files on the local filesystem under
// <baseDir>/<document_id>/<filename>.
func NewLocalStorage(baseDir string) (Storage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return &localStorage{baseDir: baseDir}, nil
}

func (s *localStorage) Upload(ctx context.Context, docID, filename string, data []byte, contentType string) (string, error) {
	dir := filepath.Join(s.baseDir, docID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create document directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

func (s *localStorage) Download(ctx context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored file: %w", err)
	}

	return data, nil
}

func (s *localStorage) Delete(ctx context.Context, docID, location string) error {
	if location != "" {
		if err := os.Remove(location); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete stored file: %w", err)
		}
	}

	// Remove the per-document directory as well.
	if docID != "" {
		dir := filepath.Join(s.baseDir, docID)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to delete document directory: %w", err)
		}
	}

	return nil
}
