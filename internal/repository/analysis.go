package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/ktindi/document-pipeline-api/internal/models"
)

// AnalysisRepository stores at most one analysis row per document.
type AnalysisRepository interface {
	Upsert(ctx context.Context, result *models.AnalysisResult) error
	GetByDocumentID(ctx context.Context, documentID string) (*models.AnalysisResult, error)
	GetForOwner(ctx context.Context, documentID, owner string) (*models.AnalysisResult, error)
}

type analysisRepository struct {
	db *sqlx.DB
}

func NewAnalysisRepository(db *sqlx.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Upsert(ctx context.Context, result *models.AnalysisResult) error {
	topicsJSON, err := json.Marshal(result.KeyTopics)
	if err != nil {
		return err
	}
	itemsJSON, err := json.Marshal(result.ActionableItems)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_results (document_id, summary, key_topics, sentiment, actionable_items, raw_model_output)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT(document_id) DO UPDATE SET
			summary = excluded.summary,
			key_topics = excluded.key_topics,
			sentiment = excluded.sentiment,
			actionable_items = excluded.actionable_items,
			raw_model_output = excluded.raw_model_output
	`

	var rawOutput interface{}
	if len(result.RawModelOutput) > 0 {
		rawOutput = string(result.RawModelOutput)
	}

	_, err = r.db.ExecContext(ctx, query,
		result.DocumentID,
		result.Summary,
		string(topicsJSON),
		result.Sentiment,
		string(itemsJSON),
		rawOutput,
	)

	return err
}

func (r *analysisRepository) GetByDocumentID(ctx context.Context, documentID string) (*models.AnalysisResult, error) {
	query := `
		SELECT document_id, summary, key_topics, sentiment, actionable_items, raw_model_output
		FROM analysis_results
		WHERE document_id = $1
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, documentID))
}

func (r *analysisRepository) GetForOwner(ctx context.Context, documentID, owner string) (*models.AnalysisResult, error) {
	query := `
		SELECT ar.document_id, ar.summary, ar.key_topics, ar.sentiment, ar.actionable_items, ar.raw_model_output
		FROM analysis_results ar
		JOIN documents d ON d.id = ar.document_id
		WHERE ar.document_id = $1 AND d.owner_username = $2
	`

	return r.scanOne(r.db.QueryRowContext(ctx, query, documentID, owner))
}

func (r *analysisRepository) scanOne(row *sql.Row) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	var topicsJSON, itemsJSON string
	var rawOutput sql.NullString

	err := row.Scan(
		&result.DocumentID,
		&result.Summary,
		&topicsJSON,
		&result.Sentiment,
		&itemsJSON,
		&rawOutput,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(topicsJSON), &result.KeyTopics); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &result.ActionableItems); err != nil {
		return nil, err
	}
	if rawOutput.Valid && rawOutput.String != "" {
		result.RawModelOutput = json.RawMessage(rawOutput.String)
	}

	return &result, nil
}
