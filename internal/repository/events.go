package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

// EventRepository is the append-only status log. Append is the only mutation
// path for document status anywhere in the system: it inserts the event and
// overwrites the document's denormalized current_status/error_message in a
// single transaction, so the two can never disagree.
type EventRepository interface {
	Append(ctx context.Context, documentID string, status models.Status, metadata json.RawMessage, errorMessage *string) (*models.StatusEvent, error)
	HistoryForDocument(ctx context.Context, documentID string) ([]models.StatusEvent, error)
	// Recent returns the owner's most recent events, oldest first, for the
	// stream catch-up burst.
	Recent(ctx context.Context, owner string, limit int) ([]models.StatusEvent, error)
	// After returns the owner's events with seq greater than cursor,
	// ascending, at most limit rows.
	After(ctx context.Context, owner string, cursor int64, limit int) ([]models.StatusEvent, error)
}

type eventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Append(ctx context.Context, documentID string, status models.Status, metadata json.RawMessage, errorMessage *string) (*models.StatusEvent, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	event := &models.StatusEvent{
		EventID:      utils.GenerateID(),
		DocumentID:   documentID,
		Status:       status,
		Timestamp:    time.Now().UTC(),
		Metadata:     metadata,
		ErrorMessage: errorMessage,
	}

	var metadataValue interface{}
	if len(event.Metadata) > 0 {
		metadataValue = string(event.Metadata)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO status_events (event_id, document_id, status, timestamp, metadata, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		event.EventID,
		event.DocumentID,
		event.Status,
		event.Timestamp,
		metadataValue,
		event.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	event.Seq, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents
		SET current_status = $1, error_message = $2
		WHERE id = $3
	`, event.Status, event.ErrorMessage, event.DocumentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return event, nil
}

const eventColumns = `seq, event_id, document_id, status, timestamp, metadata, error_message`

// statusEventRow is the scan target for event reads. Metadata is nullable in
// the table and database/sql cannot scan NULL into json.RawMessage directly.
type statusEventRow struct {
	Seq          int64          `db:"seq"`
	EventID      string         `db:"event_id"`
	DocumentID   string         `db:"document_id"`
	Status       models.Status  `db:"status"`
	Timestamp    time.Time      `db:"timestamp"`
	Metadata     sql.NullString `db:"metadata"`
	ErrorMessage *string        `db:"error_message"`
}

func (row statusEventRow) toEvent() models.StatusEvent {
	event := models.StatusEvent{
		Seq:          row.Seq,
		EventID:      row.EventID,
		DocumentID:   row.DocumentID,
		Status:       row.Status,
		Timestamp:    row.Timestamp,
		ErrorMessage: row.ErrorMessage,
	}
	if row.Metadata.Valid {
		event.Metadata = json.RawMessage(row.Metadata.String)
	}
	return event
}

func toEvents(rows []statusEventRow) []models.StatusEvent {
	events := make([]models.StatusEvent, len(rows))
	for i, row := range rows {
		events[i] = row.toEvent()
	}
	return events
}

func (r *eventRepository) HistoryForDocument(ctx context.Context, documentID string) ([]models.StatusEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM status_events WHERE document_id = $1 ORDER BY seq ASC`

	rows := []statusEventRow{}
	if err := r.db.SelectContext(ctx, &rows, query, documentID); err != nil {
		return nil, err
	}

	return toEvents(rows), nil
}

func (r *eventRepository) Recent(ctx context.Context, owner string, limit int) ([]models.StatusEvent, error) {
	query := `
		SELECT se.seq, se.event_id, se.document_id, se.status, se.timestamp, se.metadata, se.error_message
		FROM status_events se
		JOIN documents d ON d.id = se.document_id
		WHERE d.owner_username = $1
		ORDER BY se.seq DESC
		LIMIT $2
	`

	rows := []statusEventRow{}
	if err := r.db.SelectContext(ctx, &rows, query, owner, limit); err != nil {
		return nil, err
	}

	events := toEvents(rows)

	// Newest-first from the query; reverse to oldest-first for replay.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, nil
}

func (r *eventRepository) After(ctx context.Context, owner string, cursor int64, limit int) ([]models.StatusEvent, error) {
	query := `
		SELECT se.seq, se.event_id, se.document_id, se.status, se.timestamp, se.metadata, se.error_message
		FROM status_events se
		JOIN documents d ON d.id = se.document_id
		WHERE se.seq > $1 AND d.owner_username = $2
		ORDER BY se.seq ASC
		LIMIT $3
	`

	rows := []statusEventRow{}
	if err := r.db.SelectContext(ctx, &rows, query, cursor, owner, limit); err != nil {
		return nil, err
	}

	return toEvents(rows), nil
}
