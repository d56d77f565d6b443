package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmed11551/tasbih/internal/adapters/mq/queue"
	"github.com/ahmed11551/tasbih/internal/adapters/mq/worker"
	. "github.com/smartystreets/goconvey/convey"
)

// recordingApplier collects the notifications it was handed.
type recordingApplier struct {
	mu      sync.Mutex
	applied []queue.Notification
	fail    bool
}

func (a *recordingApplier) Apply(_ context.Context, n queue.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("apply failed")
	}
	a.applied = append(a.applied, n)
	return nil
}

func (a *recordingApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestPool(t *testing.T) {
	Convey("Given a worker pool over an in-memory queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		applier := &recordingApplier{}
		pool := worker.NewPool(3, q, applier)
		pool.Start(ctx)

		Convey("When notifications are enqueued", func() {
			for i := 0; i < 10; i++ {
				So(q.Enqueue(ctx, queue.Notification{JobID: "job", Event: "calculation.progress", Progress: i}), ShouldBeTrue)
			}

			Convey("Then every notification is applied", func() {
				So(waitFor(func() bool { return applier.count() == 10 }), ShouldBeTrue)
			})
		})

		Convey("When the queue closes", func() {
			So(q.Enqueue(ctx, queue.Notification{JobID: "job", Event: "calculation.completed"}), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then the pool drains and stops cleanly", func() {
				So(pool.Stop(), ShouldBeNil)
				So(applier.count(), ShouldEqual, 1)
			})
		})

		Convey("When the applier errors", func() {
			applier.mu.Lock()
			applier.fail = true
			applier.mu.Unlock()
			So(q.Enqueue(ctx, queue.Notification{JobID: "job", Event: "calculation.failed"}), ShouldBeTrue)

			Convey("Then the worker keeps running for later work", func() {
				So(waitFor(func() bool { return q.Len() == 0 }), ShouldBeTrue)

				applier.mu.Lock()
				applier.fail = false
				applier.mu.Unlock()

				So(q.Enqueue(ctx, queue.Notification{JobID: "job2", Event: "calculation.completed"}), ShouldBeTrue)
				So(waitFor(func() bool { return applier.count() == 1 }), ShouldBeTrue)
			})
		})
	})
}

func TestPoolDefaultCount(t *testing.T) {
	Convey("Given a pool created with a non-positive worker count", t, func() {
		q := queue.NewInMemoryQueue()
		pool := worker.NewPool(0, q, &recordingApplier{})

		Convey("Then workers are still created and the pool stops after close", func() {
			ctx, cancel := context.WithCancel(context.Background())
			pool.Start(ctx)
			So(q.Close(), ShouldBeNil)
			So(pool.Stop(), ShouldBeNil)
			cancel()
		})
	})
}
