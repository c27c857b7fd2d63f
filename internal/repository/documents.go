package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/ktindi/document-pipeline-api/internal/models"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	// GetByID is owner-agnostic; the worker loads documents by id alone.
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByIDForOwner(ctx context.Context, id, owner string) (*models.Document, error)
	List(ctx context.Context, owner string, status *models.Status) ([]models.Document, error)
	ListByStatuses(ctx context.Context, statuses ...models.Status) ([]models.Document, error)
	// Delete removes the document together with its status events and
	// analysis result in one transaction.
	Delete(ctx context.Context, id string) error
}

type documentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, owner_username, original_filename, stored_path, content_type, size_bytes, created_at, current_status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Owner,
		doc.Filename,
		doc.StoredPath,
		doc.ContentType,
		doc.SizeBytes,
		doc.CreatedAt,
		doc.CurrentStatus,
		doc.ErrorMessage,
	)

	return err
}

const documentColumns = `id, owner_username, original_filename, stored_path, content_type, size_bytes, created_at, current_status, error_message`

func (r *documentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	err := r.db.GetContext(ctx, &doc, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *documentRepository) GetByIDForOwner(ctx context.Context, id, owner string) (*models.Document, error) {
	var doc models.Document

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND owner_username = $2`

	err := r.db.GetContext(ctx, &doc, query, id, owner)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, owner string, status *models.Status) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_username = $1`
	args := []interface{}{owner}

	if status != nil {
		query += ` AND current_status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	docs := []models.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, err
	}

	return docs, nil
}

func (r *documentRepository) ListByStatuses(ctx context.Context, statuses ...models.Status) ([]models.Document, error) {
	if len(statuses) == 0 {
		return []models.Document{}, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = s
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE current_status IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY created_at ASC`

	docs := []models.Document{}
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, err
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM status_events WHERE document_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM analysis_results WHERE document_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}
