package storage

import "context"

// Storage persists raw uploaded files. Upload returns the stored location
// that is recorded on the document and later handed to the extractor; its
// parent path element is always the document id.
type Storage interface {
	Upload(ctx context.Context, docID, filename string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, docID, location string) error
}
