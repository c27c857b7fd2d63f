package queue

import (
	"context"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := NewJobQueue()
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")

	ctx := context.Background()
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue returned error: %v", err)
		}
		if got != want {
			t.Errorf("Dequeue = %q, want %q", got, want)
		}
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewJobQueue()

	result := make(chan string, 1)
	go func() {
		id, err := q.Dequeue(context.Background())
		if err != nil {
			t.Errorf("Dequeue returned error: %v", err)
		}
		result <- id
	}()

	select {
	case id := <-result:
		t.Fatalf("Dequeue returned %q before anything was enqueued", id)
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue("doc-1")

	select {
	case id := <-result:
		if id != "doc-1" {
			t.Errorf("Dequeue = %q, want doc-1", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake up after Enqueue")
	}
}

func TestDequeueRespectsContextCancel(t *testing.T) {
	q := NewJobQueue()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Dequeue error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after context cancel")
	}
}

func TestSnapshotDoesNotRemove(t *testing.T) {
	q := NewJobQueue()
	q.Enqueue("a")
	q.Enqueue("b")

	snapshot := q.Snapshot()
	if len(snapshot) != 2 || snapshot[0] != "a" || snapshot[1] != "b" {
		t.Errorf("Snapshot = %v, want [a b]", snapshot)
	}

	// Mutating the snapshot must not affect the queue.
	snapshot[0] = "mutated"

	id, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue returned error: %v", err)
	}
	if id != "a" {
		t.Errorf("Dequeue = %q, want a", id)
	}
}

func TestRemoveFirstOccurrence(t *testing.T) {
	q := NewJobQueue()
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("a")

	if !q.Remove("a") {
		t.Fatal("Remove(a) = false, want true")
	}

	snapshot := q.Snapshot()
	if len(snapshot) != 2 || snapshot[0] != "b" || snapshot[1] != "a" {
		t.Errorf("Snapshot after remove = %v, want [b a]", snapshot)
	}

	if q.Remove("missing") {
		t.Error("Remove(missing) = true, want false")
	}
}

func TestContains(t *testing.T) {
	q := NewJobQueue()
	if q.Contains("a") {
		t.Error("Contains(a) = true on empty queue")
	}

	q.Enqueue("a")
	if !q.Contains("a") {
		t.Error("Contains(a) = false after enqueue")
	}
}

func TestDequeueDrainsBacklogWithoutExtraWakeups(t *testing.T) {
	q := NewJobQueue()
	for i := 0; i < 10; i++ {
		q.Enqueue("doc")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 10; i++ {
		if _, err := q.Dequeue(ctx); err != nil {
			t.Fatalf("Dequeue %d returned error: %v", i, err)
		}
	}

	if got := q.Snapshot(); len(got) != 0 {
		t.Errorf("queue not drained, %d items left", len(got))
	}
}
