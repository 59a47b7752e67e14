package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/pkg/logger"
	"github.com/okian/parkwise/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount     = 2
	defaultMaxTries        = 5
	defaultInitialInterval = 50 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Entry is what workers read off the queue.
type Entry = model.LedgerEntry

// Sink persists ledger entries. Append must be idempotent per entry ID so a
// retried write cannot duplicate an entry.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Queue defines how workers receive entries.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Entry
}

// Worker drains entries into a sink.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without waiting for the queue to drain.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration

	shutdown chan struct{}
	stopOnce atomic.Bool
	done     chan struct{}

	idle   *atomic.Int64
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:           queue,
		sink:            sink,
		name:            "worker",
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
		idle:            new(atomic.Int64),
		logger:          logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	entries := w.queue.Dequeue(ctx)
	for {
		metrics.UpdateWorkerIdleCount(int(w.idle.Add(1)))
		select {
		case <-ctx.Done():
			w.idle.Add(-1)
			return
		case <-w.shutdown:
			w.idle.Add(-1)
			return
		case e, ok := <-entries:
			metrics.UpdateWorkerIdleCount(int(w.idle.Add(-1)))
			if !ok {
				return
			}
			if err := w.process(ctx, e); err != nil {
				w.logger.Error(ctx, "journal write abandoned",
					logger.String("entry_id", e.ID),
					logger.Int64("seq", e.Seq),
					logger.Error(err))
			}
		}
	}
}

// Shutdown signals the worker to stop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	if w.stopOnce.CompareAndSwap(false, true) {
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, e Entry) error { //nolint:gocritic // hugeParam: entries travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.initialInterval
	bo.MaxInterval = w.maxInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			metrics.RecordWorkerRetry()
		}
		if err := w.sink.Append(ctx, e); err != nil {
			w.logger.Warn(ctx, "journal write failed",
				logger.String("entry_id", e.ID),
				logger.Int("attempt", attempt),
				logger.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(w.maxTries),
	)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "sink_error")
		return fmt.Errorf("append entry %s after %d attempts: %w", e.ID, attempt, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue and sink.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. Options are applied to
// every worker.
func NewPool(workerCount int, queue Queue, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	idle := new(atomic.Int64)
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, sink, wopts...)
		w.idle = idle
		p.workers[i] = w
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue and lets the workers drain it. Workers still
// running when ctx (or the pool timeout) expires are stopped; entries left
// in the queue at that point are not written.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drainCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-drainCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(context.Background())
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not drain: %w", timedOut, drainCtx.Err())
	}
	return nil
}
