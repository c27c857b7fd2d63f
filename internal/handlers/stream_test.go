package handlers_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ktindi/document-pipeline-api/internal/auth"
	"github.com/ktindi/document-pipeline-api/internal/handlers"
	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		var event sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				event.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				event.data = strings.TrimPrefix(line, "data: ")
			default:
				t.Fatalf("unexpected SSE line %q", line)
			}
		}
		events = append(events, event)
	}
	return events
}

func statusPayloads(t *testing.T, events []sseEvent) []models.StreamEventPayload {
	t.Helper()

	var payloads []models.StreamEventPayload
	for _, event := range events {
		if event.name != "status" {
			continue
		}
		var payload models.StreamEventPayload
		if err := json.Unmarshal([]byte(event.data), &payload); err != nil {
			t.Fatalf("failed to decode status payload %q: %v", event.data, err)
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

func (e *apiEnv) seedDocument(t *testing.T, owner, filename string) string {
	t.Helper()

	doc := &models.Document{
		ID:            utils.GenerateID(),
		Owner:         owner,
		Filename:      filename,
		StoredPath:    "x/" + filename,
		ContentType:   "text/plain",
		SizeBytes:     4,
		CreatedAt:     time.Now().UTC(),
		CurrentStatus: models.StatusPending,
	}
	if err := e.docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	return doc.ID
}

func (e *apiEnv) appendEvent(t *testing.T, docID string, status models.Status) {
	t.Helper()
	if _, err := e.events.Append(context.Background(), docID, status, nil, nil); err != nil {
		t.Fatalf("failed to append %s event: %v", status, err)
	}
}

// runStream drives StreamDocuments against a recorder until run returns,
// then hands back the emitted SSE events. The run callback gets the cancel
// for the request context and must arrange for the stream to end.
func runStream(t *testing.T, env *apiEnv, run func(cancel context.CancelFunc)) []sseEvent {
	t.Helper()

	handler := handlers.NewDocumentHandler(env.service, 10*time.Millisecond, utils.NewLogger("error"))

	ctx, cancel := context.WithCancel(auth.WithUser(context.Background(), "user1"))
	defer cancel()

	req := httptest.NewRequest("GET", "/api/v1/documents/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.StreamDocuments(rec, req)
	}()

	run(cancel)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not close after context cancellation")
	}

	if rec.Code != 200 {
		t.Fatalf("stream status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	return parseSSE(t, rec.Body.String())
}

func TestStreamReplaysHistoryOldestFirst(t *testing.T) {
	env := newAPIEnv(t)

	docID := env.seedDocument(t, "user1", "doc.txt")
	for _, status := range []models.Status{
		models.StatusPending,
		models.StatusProcessing,
		models.StatusAnalyzing,
	} {
		env.appendEvent(t, docID, status)
	}

	events := runStream(t, env, func(cancel context.CancelFunc) {
		time.Sleep(50 * time.Millisecond)
		cancel()
	})

	payloads := statusPayloads(t, events)
	if len(payloads) != 3 {
		t.Fatalf("status events = %d, want 3", len(payloads))
	}
	want := []models.Status{models.StatusPending, models.StatusProcessing, models.StatusAnalyzing}
	for i, payload := range payloads {
		if payload.Status != want[i] {
			t.Errorf("event %d status = %s, want %s", i, payload.Status, want[i])
		}
		if payload.DocumentID != docID {
			t.Errorf("event %d document_id = %q, want %q", i, payload.DocumentID, docID)
		}
	}
}

func TestStreamEmitsHeartbeatWhenIdle(t *testing.T) {
	env := newAPIEnv(t)

	events := runStream(t, env, func(cancel context.CancelFunc) {
		time.Sleep(60 * time.Millisecond)
		cancel()
	})

	heartbeats := 0
	for _, event := range events {
		if event.name != "heartbeat" {
			continue
		}
		heartbeats++

		var payload struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(event.data), &payload); err != nil {
			t.Fatalf("failed to decode heartbeat %q: %v", event.data, err)
		}
		if payload.Status != "idle" || payload.Message != "stream_alive" {
			t.Errorf("heartbeat payload = %q", event.data)
		}
	}
	if heartbeats == 0 {
		t.Error("no heartbeat emitted on an idle stream")
	}
}

func TestStreamDeliversLiveEventsWithoutDuplicates(t *testing.T) {
	env := newAPIEnv(t)

	docID := env.seedDocument(t, "user1", "doc.txt")
	env.appendEvent(t, docID, models.StatusPending)

	events := runStream(t, env, func(cancel context.CancelFunc) {
		time.Sleep(30 * time.Millisecond)
		env.appendEvent(t, docID, models.StatusProcessing)
		env.appendEvent(t, docID, models.StatusAnalyzing)
		time.Sleep(60 * time.Millisecond)
		cancel()
	})

	payloads := statusPayloads(t, events)
	var got []models.Status
	for _, payload := range payloads {
		got = append(got, payload.Status)
	}

	want := []models.Status{models.StatusPending, models.StatusProcessing, models.StatusAnalyzing}
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}
}

func TestStreamEnrichesCompletedEventsWithAnalysis(t *testing.T) {
	env := newAPIEnv(t)

	docID := env.seedDocument(t, "user1", "doc.txt")
	env.appendEvent(t, docID, models.StatusCompleted)

	result := &models.AnalysisResult{
		DocumentID:      docID,
		Summary:         "First point. Second point. Third point.",
		KeyTopics:       []string{"alpha", "beta"},
		Sentiment:       "positive",
		ActionableItems: []string{"follow up"},
	}
	if err := env.analysis.Upsert(context.Background(), result); err != nil {
		t.Fatalf("failed to upsert analysis: %v", err)
	}

	events := runStream(t, env, func(cancel context.CancelFunc) {
		time.Sleep(40 * time.Millisecond)
		cancel()
	})

	payloads := statusPayloads(t, events)
	if len(payloads) != 1 {
		t.Fatalf("status events = %d, want 1", len(payloads))
	}

	payload := payloads[0]
	if payload.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", payload.Status)
	}
	if payload.Result == nil {
		t.Fatal("completed event carries no analysis result")
	}
	if payload.Result.Summary != result.Summary {
		t.Errorf("summary = %q, want %q", payload.Result.Summary, result.Summary)
	}
	if payload.Result.Sentiment != "positive" {
		t.Errorf("sentiment = %q, want positive", payload.Result.Sentiment)
	}
	if len(payload.Result.KeyTopics) != 2 {
		t.Errorf("key_topics = %v", payload.Result.KeyTopics)
	}
}

func TestStreamOnlyShowsOwnersEvents(t *testing.T) {
	env := newAPIEnv(t)

	mine := env.seedDocument(t, "user1", "mine.txt")
	theirs := env.seedDocument(t, "someone-else", "theirs.txt")
	env.appendEvent(t, mine, models.StatusPending)
	env.appendEvent(t, theirs, models.StatusPending)

	events := runStream(t, env, func(cancel context.CancelFunc) {
		time.Sleep(40 * time.Millisecond)
		cancel()
	})

	payloads := statusPayloads(t, events)
	if len(payloads) != 1 {
		t.Fatalf("status events = %d, want 1", len(payloads))
	}
	if payloads[0].DocumentID != mine {
		t.Errorf("document_id = %q, want %q", payloads[0].DocumentID, mine)
	}
}
