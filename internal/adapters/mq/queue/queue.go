// Package queue defines the contract for enqueuing and consuming submitted
// laps. The in-memory implementation is a bounded buffered channel.
package queue

import (
	"context"
	"sync"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/metrics"
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 10000

// Lap is the payload type flowing through the queue.
type Lap = model.Lap

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a lap. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, l Lap) bool

	// Dequeue returns a channel of laps, closed once the queue is closed and
	// drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Lap

	Len(ctx context.Context) int
	Capacity() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	laps     chan Lap
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.laps = make(chan Lap, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds a lap without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, l Lap) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	}

	select {
	case q.laps <- l:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.laps), q.capacity)
		return true
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive laps as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Lap {
	out := make(chan Lap)
	go func() {
		defer close(out)
		for {
			select {
			case l, ok := <-q.laps:
				if !ok {
					return
				}
				select {
				case out <- l:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.laps), q.capacity)
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued laps.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.laps)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Capacity returns the configured bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Close stops accepting laps; queued laps can still be drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.laps)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
