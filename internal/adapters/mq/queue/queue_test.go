package queue

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	n1 := Notification{JobID: "job1", Event: "calculation.progress", Progress: 40}
	if !q.Enqueue(ctx, n1) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue()
	if got.JobID != "job1" {
		t.Errorf("expected job1, got %v", got.JobID)
	}

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Backpressure(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if !q.Enqueue(ctx, Notification{JobID: "job1", Event: "calculation.completed"}) {
		t.Error("first enqueue should succeed")
	}
	if q.Enqueue(ctx, Notification{JobID: "job2", Event: "calculation.completed"}) {
		t.Error("enqueue on a full queue should fail")
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	q.Enqueue(ctx, Notification{JobID: "job1", Event: "calculation.completed"})
	if err := q.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if q.Enqueue(ctx, Notification{JobID: "job2", Event: "calculation.completed"}) {
		t.Error("enqueue after close should fail")
	}

	// Buffered items remain consumable, then the channel closes.
	if got := <-q.Dequeue(); got.JobID != "job1" {
		t.Errorf("expected buffered job1, got %v", got.JobID)
	}
	select {
	case _, ok := <-q.Dequeue():
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel should close after Close")
	}

	// Double close is a no-op.
	if err := q.Close(); err != nil {
		t.Errorf("second close should be nil, got %v", err)
	}
}

func TestInMemoryQueue_Concurrent(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000))
	ctx := context.Background()

	const producers = 4
	const perProducer = 100

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < producers*perProducer; i++ {
			<-q.Dequeue()
		}
	}()

	for p := 0; p < producers; p++ {
		go func(p int) {
			for i := 0; i < perProducer; i++ {
				q.Enqueue(ctx, Notification{JobID: fmt.Sprintf("p%d-%d", p, i), Event: "calculation.progress"})
			}
		}(p)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain all notifications")
	}
}
