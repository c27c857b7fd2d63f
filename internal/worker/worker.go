package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ktindi/document-pipeline-api/internal/analyzer"
	"github.com/ktindi/document-pipeline-api/internal/extractor"
	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/queue"
	"github.com/ktindi/document-pipeline-api/internal/repository"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

var (
	metadataExtractionStarted = json.RawMessage(`{"info": "Text extraction started."}`)
	metadataAnalysisStarted   = json.RawMessage(`{"info": "LLM analysis started."}`)
	metadataCompleted         = json.RawMessage(`{"info": "Processing completed."}`)
	metadataFailed            = json.RawMessage(`{"info": "Processing failed."}`)
)

// Worker is the single long-lived consumer of the job queue. It drives each
// document through extraction and analysis and records every transition in
// the status event log. Exactly one document is in flight at any time; a
// failing job never terminates the loop.
type Worker struct {
	queue     *queue.JobQueue
	docs      repository.DocumentRepository
	events    repository.EventRepository
	analysis  repository.AnalysisRepository
	extractor extractor.Extractor
	analyzer  analyzer.Analyzer
	logger    *utils.Logger

	// retryDelay separates the two analysis attempts.
	retryDelay time.Duration

	mu      sync.Mutex
	current string
}

func New(
	q *queue.JobQueue,
	docs repository.DocumentRepository,
	events repository.EventRepository,
	analysis repository.AnalysisRepository,
	ext extractor.Extractor,
	an analyzer.Analyzer,
	logger *utils.Logger,
) *Worker {
	return &Worker{
		queue:      q,
		docs:       docs,
		events:     events,
		analysis:   analysis,
		extractor:  ext,
		analyzer:   an,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// IsCurrentlyProcessing reports whether id is the document in flight.
func (w *Worker) IsCurrentlyProcessing(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current == id
}

func (w *Worker) setCurrent(id string) {
	w.mu.Lock()
	w.current = id
	w.mu.Unlock()
}

func (w *Worker) clearCurrent() {
	w.mu.Lock()
	w.current = ""
	w.mu.Unlock()
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Worker started")

	for {
		id, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Info("Worker stopping", "reason", err)
			return
		}

		w.Process(ctx, id)
	}
}

// Process runs a single job. The in-flight marker covers the whole job and
// is cleared unconditionally before the next dequeue.
func (w *Worker) Process(ctx context.Context, id string) {
	w.setCurrent(id)
	defer w.clearCurrent()

	w.logger.Info("Processing document", "document_id", id, "queued", w.queue.Snapshot())

	err := w.runJob(ctx, id)
	if err == nil {
		w.logger.Info("Document processed successfully", "document_id", id)
		return
	}

	var extractionErr *extractor.ExtractionError
	var analysisErr *analyzer.AnalysisError
	switch {
	case errors.As(err, &extractionErr):
		w.logger.Warn("Extraction failed", "document_id", id, "error", err)
	case errors.As(err, &analysisErr):
		w.logger.Warn("Analysis failed", "document_id", id, "error", err)
	default:
		w.logger.Error("Unexpected job failure", "document_id", id, "error", err)
	}

	message := err.Error()
	if _, appendErr := w.events.Append(ctx, id, models.StatusFailed, metadataFailed, &message); appendErr != nil {
		w.logger.Error("Failed to record failed status", "document_id", id, "error", appendErr)
	}
}

// runJob executes the job steps. Panics are converted to errors so a single
// bad job cannot take down the loop.
func (w *Worker) runJob(ctx context.Context, id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	doc, err := w.docs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load document metadata: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document metadata not found in database")
	}

	// pending -> processing
	if _, err := w.events.Append(ctx, id, models.StatusProcessing, metadataExtractionStarted, nil); err != nil {
		return fmt.Errorf("failed to record processing status: %w", err)
	}

	text, err := w.extractor.Extract(ctx, doc.StoredPath, doc.ContentType)
	if err != nil {
		return err
	}

	// processing -> analyzing
	if _, err := w.events.Append(ctx, id, models.StatusAnalyzing, metadataAnalysisStarted, nil); err != nil {
		return fmt.Errorf("failed to record analyzing status: %w", err)
	}

	result, err := w.analyzeWithRetry(ctx, text)
	if err != nil {
		return err
	}

	if err := w.analysis.Upsert(ctx, &models.AnalysisResult{
		DocumentID:      id,
		Summary:         result.Summary,
		KeyTopics:       result.KeyTopics,
		Sentiment:       result.Sentiment,
		ActionableItems: result.ActionableItems,
		RawModelOutput:  result.RawModelOutput,
	}); err != nil {
		return fmt.Errorf("failed to persist analysis result: %w", err)
	}

	// analyzing -> completed
	if _, err := w.events.Append(ctx, id, models.StatusCompleted, metadataCompleted, nil); err != nil {
		return fmt.Errorf("failed to record completed status: %w", err)
	}

	return nil
}

// analyzeWithRetry gives the analysis collaborator two attempts with a fixed
// delay in between. Contract-validation failures come back from Analyze as
// AnalysisErrors and count against the same budget.
func (w *Worker) analyzeWithRetry(ctx context.Context, text string) (*models.LLMAnalysisResult, error) {
	const attempts = 2

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := w.analyzer.Analyze(ctx, text)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < attempts {
			w.logger.Warn("Analysis attempt failed, retrying", "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return nil, &analyzer.AnalysisError{Message: "analysis cancelled", Err: ctx.Err()}
			case <-time.After(w.retryDelay):
			}
		}
	}

	return nil, &analyzer.AnalysisError{Message: "analysis failed after retry", Err: lastErr}
}

// RecoverInterrupted re-enqueues documents left pending by a previous run
// and fails documents stranded mid-processing, so nothing stays silently
// stuck after a restart.
func (w *Worker) RecoverInterrupted(ctx context.Context) error {
	pending, err := w.docs.ListByStatuses(ctx, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to list pending documents: %w", err)
	}
	for _, doc := range pending {
		w.queue.Enqueue(doc.ID)
		w.logger.Info("Re-enqueued pending document", "document_id", doc.ID)
	}

	stranded, err := w.docs.ListByStatuses(ctx, models.StatusProcessing, models.StatusAnalyzing)
	if err != nil {
		return fmt.Errorf("failed to list stranded documents: %w", err)
	}
	for _, doc := range stranded {
		message := "processing interrupted by restart"
		if _, err := w.events.Append(ctx, doc.ID, models.StatusFailed, metadataFailed, &message); err != nil {
			return fmt.Errorf("failed to fail stranded document %s: %w", doc.ID, err)
		}
		w.logger.Warn("Marked stranded document as failed", "document_id", doc.ID)
	}

	return nil
}
