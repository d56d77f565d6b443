// Package queue decouples webhook intake from application.
//
// The HTTP handler must ack the external sender immediately so it never
// retries forever; accepted notifications flow through this bounded
// in-memory queue to the worker pool.
package queue

import (
	"context"
	"sync"

	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// Default queue configuration constants.
const defaultCapacity = 4096

// Notification is the payload type flowing through the queue.
type Notification = model.CalcNotification

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a notification. Returns false if the queue is full
	// or closed.
	Enqueue(ctx context.Context, n Notification) bool

	// Dequeue returns the channel notifications arrive on. The channel
	// closes when the queue closes.
	Dequeue() <-chan Notification

	// Len returns the current number of queued notifications.
	Len() int

	// Close shuts the queue down; further enqueues fail.
	Close() error
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	items    chan Notification
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates an in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Notification, q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	select {
	case q.items <- n:
		metrics.UpdateQueueSize(len(q.items))
		return true
	case <-ctx.Done():
		return false
	default:
		return false // queue is full
	}
}

func (q *InMemoryQueue) Dequeue() <-chan Notification {
	return q.items
}

func (q *InMemoryQueue) Len() int {
	return len(q.items)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}
