package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-analyzer/internal/shared/metrics"
)

const DefaultQueueCapacity = 256

var (
	ErrQueueFull   = errors.New("analysis queue is full")
	ErrQueueClosed = errors.New("analysis queue is closed")
)

// Queue is a bounded FIFO of jobs shared by any number of producers and a
// single consumer. Enqueue never blocks.
type Queue struct {
	mu     sync.RWMutex
	ch     chan AnalysisJob
	closed bool
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan AnalysisJob, capacity)}
}

// Enqueue appends job, failing with ErrQueueFull or ErrQueueClosed.
func (q *Queue) Enqueue(job AnalysisJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		metrics.SetQueueDepth(len(q.ch))
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue waits up to timeout for the oldest job. It returns ok=false when the
// timeout elapses, ctx.Err() when ctx ends first, and ErrQueueClosed once the
// queue is closed and drained. A non-positive timeout waits indefinitely.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (AnalysisJob, bool, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case job, ok := <-q.ch:
		if !ok {
			return AnalysisJob{}, false, ErrQueueClosed
		}
		metrics.SetQueueDepth(len(q.ch))
		return job, true, nil
	case <-expired:
		return AnalysisJob{}, false, nil
	case <-ctx.Done():
		return AnalysisJob{}, false, ctx.Err()
	}
}

// Close stops intake. Jobs already queued remain available to Dequeue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len returns the number of waiting jobs.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
