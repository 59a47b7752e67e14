// Package queue buffers committed ledger entries between the garage engine
// and the journal writers.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/parkwise/internal/domain/model"
	"github.com/okian/parkwise/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultBufferSize    = 10000
)

// Entry is the payload flowing through the queue.
type Entry = model.LedgerEntry

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an entry to the queue.
	// Returns false if the queue is full or closed and the entry was dropped.
	Enqueue(ctx context.Context, e Entry) bool

	// Dequeue returns a channel that receives entries as they become
	// available. The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Entry

	// Len returns the current number of queued entries.
	Len(ctx context.Context) int

	// Close stops accepting entries. Queued entries can still be dequeued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

type item struct {
	entry      Entry
	enqueuedAt time.Time
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items      chan item
	capacity   int
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.bufferSize < q.capacity {
		q.bufferSize = q.capacity
	}
	q.items = make(chan item, q.bufferSize)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds an entry to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Entry) bool { //nolint:gocritic // hugeParam: entries travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if len(q.items) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}

	select {
	case q.items <- item{entry: e, enqueuedAt: time.Now()}:
		metrics.RecordQueueEnqueue()
		q.observeSize()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive entries as they become
// available. Each call starts its own forwarding goroutine.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Entry {
	out := make(chan Entry)
	go func() {
		defer close(out)
		for it := range q.items {
			select {
			case out <- it.entry:
				metrics.RecordQueueDequeue()
				metrics.RecordQueueProcessingLatency(float64(time.Since(it.enqueuedAt).Microseconds()) / 1000)
				q.observeSize()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued entries.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return q.observeSize()
}

func (q *InMemoryQueue) observeSize() int {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close stops accepting entries.
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

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
