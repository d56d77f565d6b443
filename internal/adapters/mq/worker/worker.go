// Package worker applies queued webhook notifications.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ahmed11551/tasbih/internal/adapters/mq/queue"
	"github.com/ahmed11551/tasbih/pkg/logger"
	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Applier applies one notification to application state. Errors are
// logged and counted but never propagate back to the external sender;
// the ack already happened at the HTTP layer.
type Applier interface {
	Apply(ctx context.Context, n queue.Notification) error
}

// Worker drains the queue and hands notifications to the applier.
type Worker struct {
	source  <-chan queue.Notification
	applier Applier
	done    chan struct{}
	log     logger.Logger
}

// NewWorker creates a single worker draining source.
func NewWorker(source <-chan queue.Notification, applier Applier, name string) *Worker {
	return &Worker{
		source:  source,
		applier: applier,
		done:    make(chan struct{}),
		log:     logger.Get().Named(name),
	}
}

// Run processes notifications until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-w.source:
			if !ok {
				return
			}
			if err := w.applier.Apply(ctx, n); err != nil {
				metrics.RecordWorkerError()
				w.log.Error(ctx, "apply notification failed",
					logger.String("job_id", n.JobID),
					logger.String("event", n.Event),
					logger.Error(err),
				)
			}
		}
	}
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker
}

// NewPool creates workerCount workers draining q into applier.
func NewPool(workerCount int, q queue.Queue, applier Applier) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{workers: make([]*Worker, workerCount)}
	for i := range p.workers {
		p.workers[i] = NewWorker(q.Dequeue(), applier, "webhook-worker-"+strconv.Itoa(i))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop waits for every worker to drain, up to a per-worker timeout.
func (p *Pool) Stop() error {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
			return fmt.Errorf("worker %d shutdown timed out", i)
		}
	}
	return nil
}
