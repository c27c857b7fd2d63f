package queue

import (
	"context"
	"sync"
)

// JobQueue is an unbounded in-memory FIFO of document identifiers. It is the
// only coordination point between upload handlers and the worker. Contents
// are not durable; anything still queued is lost on process restart.
type JobQueue struct {
	mu     sync.Mutex
	items  []string
	wakeup chan struct{}
}

func NewJobQueue() *JobQueue {
	return &JobQueue{
		wakeup: make(chan struct{}, 1),
	}
}

// Enqueue appends id to the queue and wakes a blocked consumer if any.
func (q *JobQueue) Enqueue(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest id, blocking until an item is
// available or ctx is done.
func (q *JobQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// Keep the consumer runnable while items remain; a wakeup
			// can be consumed by a dequeue that raced an enqueue.
			if remaining > 0 {
				select {
				case q.wakeup <- struct{}{}:
				default:
				}
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.wakeup:
		}
	}
}

// Snapshot returns the pending contents in queue order without removal.
func (q *JobQueue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := make([]string, len(q.items))
	copy(snapshot, q.items)
	return snapshot
}

// Contains reports whether id is currently queued.
func (q *JobQueue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item == id {
			return true
		}
	}
	return false
}

// Remove removes the first occurrence of id and reports whether a removal
// occurred. Used to cancel a job that has not yet started.
func (q *JobQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}
