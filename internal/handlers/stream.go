package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ktindi/document-pipeline-api/internal/auth"
	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

var heartbeatPayload = []byte(`{"status": "idle", "message": "stream_alive"}`)

// StreamDocuments serves a resumable SSE feed of the status event log. On
// open it replays the most recent events oldest-first to establish the
// cursor, then polls for events past the cursor; idle cycles emit a
// heartbeat. completed events are enriched with the analysis result at
// emission time. The loop exits as soon as the client disconnects and issues
// no further queries after that.
func (h *DocumentHandler) StreamDocuments(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.respondError(w, utils.NewUnauthorizedError("Missing caller identity"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, utils.NewInternalError("Streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	var cursor int64

	recent, err := h.service.RecentEvents(ctx, owner, catchUpLimit)
	if err != nil {
		h.logger.Error("Failed to load catch-up events", "error", err, "owner", owner)
		return
	}

	for _, event := range recent {
		cursor = event.Seq
		if err := h.writeStatusEvent(ctx, w, owner, event); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected, closing stream", "owner", owner)
			return
		default:
		}

		events, err := h.service.EventsAfter(ctx, owner, cursor, pollPageLimit)
		if err != nil {
			h.logger.Error("Failed to poll status events", "error", err, "owner", owner)
			return
		}

		if len(events) == 0 {
			if err := writeSSE(w, "heartbeat", heartbeatPayload); err != nil {
				return
			}
			flusher.Flush()

			select {
			case <-ctx.Done():
				h.logger.Info("SSE client disconnected, closing stream", "owner", owner)
				return
			case <-time.After(h.pollInterval):
			}
			continue
		}

		for _, event := range events {
			cursor = event.Seq
			if err := h.writeStatusEvent(ctx, w, owner, event); err != nil {
				return
			}
		}
		flusher.Flush()
		// A full batch may mean more are waiting; poll again immediately.
	}
}

func (h *DocumentHandler) writeStatusEvent(ctx context.Context, w http.ResponseWriter, owner string, event models.StatusEvent) error {
	payload := models.StreamEventPayload{
		DocumentID:   event.DocumentID,
		Status:       event.Status,
		Timestamp:    event.Timestamp,
		Metadata:     event.Metadata,
		ErrorMessage: event.ErrorMessage,
	}

	if event.Status == models.StatusCompleted {
		analysis, err := h.service.AnalysisForOwner(ctx, owner, event.DocumentID)
		if err != nil {
			h.logger.Error("Failed to load analysis for stream", "error", err, "document_id", event.DocumentID)
		} else if analysis != nil {
			payload.Result = &models.StreamResult{
				Summary:         analysis.Summary,
				KeyTopics:       analysis.KeyTopics,
				Sentiment:       analysis.Sentiment,
				ActionableItems: analysis.ActionableItems,
			}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal stream payload", "error", err)
		return err
	}

	return writeSSE(w, "status", data)
}

func writeSSE(w http.ResponseWriter, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
