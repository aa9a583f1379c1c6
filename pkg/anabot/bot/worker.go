package bot

import (
	"log/slog"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
)

// Queue runs inbound work units on a bounded worker pool. Submitting more
// work than the pool can absorb blocks the caller, which gives the webhook
// handler natural backpressure instead of unbounded goroutine growth.
type Queue struct {
	pool     *pool.Pool
	logger   *slog.Logger
	closed   atomic.Bool
	inFlight atomic.Int64
}

// NewQueue creates a queue backed by maxWorkers goroutines.
func NewQueue(maxWorkers int, logger *slog.Logger) *Queue {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		pool:   pool.New().WithMaxGoroutines(maxWorkers),
		logger: logger.With("component", "queue"),
	}
}

// Submit schedules fn on the pool. Work submitted after Drain is dropped
// with a warning.
func (q *Queue) Submit(eventID string, fn func()) {
	if q.closed.Load() {
		q.logger.Warn("queue draining, event dropped", "event_id", eventID)
		return
	}
	q.inFlight.Add(1)
	q.pool.Go(func() {
		defer q.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				q.logger.Error("panic in work unit", "event_id", eventID, "panic", r)
			}
		}()
		fn()
	})
}

// InFlight returns the number of queued or running work units.
func (q *Queue) InFlight() int64 {
	return q.inFlight.Load()
}

// Drain stops accepting work and waits for in-flight units to finish.
func (q *Queue) Drain() {
	q.closed.Store(true)
	q.pool.Wait()
}
