// Package queue serializes filesystem change events for the indexing
// pipeline.
//
// Watcher callbacks and reconciliation both produce events; a single
// worker consumes them in arrival order. One consumer means document
// updates for the same path can never interleave, so the store never
// needs per-path locking for pipeline writes.
package queue

import (
	"context"
	"log/slog"
	"sync"
)

// Kind is the type of filesystem change.
type Kind string

const (
	// KindAdd is a newly created file.
	KindAdd Kind = "add"
	// KindChange is a modified file.
	KindChange Kind = "change"
	// KindUnlink is a deleted file.
	KindUnlink Kind = "unlink"
)

// Event is one filesystem change to process.
type Event struct {
	// CorpusID identifies the corpus the event belongs to.
	CorpusID string
	// AbsolutePath is the full filesystem path of the file.
	AbsolutePath string
	// RelativePath is the path relative to the watch root, the document key.
	RelativePath string
	// Kind is the change type.
	Kind Kind
}

// Handler processes one event. Errors are logged and the event is
// dropped; there is no retry, the next change to the same file will
// bring the index current.
type Handler func(ctx context.Context, ev Event) error

// Queue is an unbounded FIFO with non-blocking enqueue and a single
// consumer. Events are processed strictly in arrival order without
// coalescing: a change followed by an unlink runs as two operations,
// which is safe because both are idempotent against the store.
type Queue struct {
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	closed  bool
}

// New creates a queue that dispatches events to handler.
func New(handler Handler, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		handler: handler,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue appends an event. It never blocks; the backing slice grows
// as needed. Events enqueued after Close are dropped.
func (q *Queue) Enqueue(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of events waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run consumes events until the context is cancelled. It drains all
// pending events before sleeping, so a burst of changes is processed
// in one pass. Run returns the context error on cancellation.
func (q *Queue) Run(ctx context.Context) error {
	for {
		for {
			ev, ok := q.dequeue()
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := q.handler(ctx, ev); err != nil {
				q.logger.Error("event processing failed",
					"kind", string(ev.Kind),
					"path", ev.RelativePath,
					"error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *Queue) dequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Event{}, false
	}
	ev := q.pending[0]
	q.pending = q.pending[1:]
	return ev, true
}

// Close stops accepting new events. Pending events are still consumed
// by Run.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
