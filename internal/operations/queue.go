package operations

import (
	"sync"
	"time"

	"github.com/tendant/simple-photo-pipeline/internal/logging"
)

// Queue is a FIFO of operations drained by a fixed number of workers. With
// one worker, operations execute strictly one at a time in submission order.
//
// A suspended queue keeps accepting operations but does not dequeue them;
// operations already executing are unaffected.
type Queue struct {
	phase      Phase
	numWorkers int
	logger     logging.Logger
	metrics    *Metrics

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []*Operation
	suspended bool
	closed    bool

	once sync.Once
	wg   sync.WaitGroup
}

// NewQueue creates a queue for phase. numWorkers below 1 is treated as 1.
func NewQueue(phase Phase, numWorkers int, logger logging.Logger, metrics *Metrics) *Queue {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	q := &Queue{
		phase:      phase,
		numWorkers: numWorkers,
		logger:     logger,
		metrics:    metrics,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start spawns the workers. Subsequent calls are no-ops.
func (q *Queue) Start() {
	q.once.Do(func() {
		for range q.numWorkers {
			q.wg.Go(q.work)
		}
	})
}

// Add appends op to the queue and reports whether it was accepted. It never
// blocks. Operations added after Close are cancelled and rejected.
func (q *Queue) Add(op *Operation) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		op.Cancel()
		q.metrics.observe(q.phase, OutcomeDropped, 0)
		return false
	}
	q.pending = append(q.pending, op)
	q.metrics.setQueued(q.phase, len(q.pending))
	q.mu.Unlock()

	q.cond.Signal()
	return true
}

// SetSuspended toggles whether workers dequeue new operations
func (q *Queue) SetSuspended(suspended bool) {
	q.mu.Lock()
	q.suspended = suspended
	q.mu.Unlock()

	if !suspended {
		q.cond.Broadcast()
	}
}

// Suspended reports whether the queue is suspended
func (q *Queue) Suspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}

// Len returns the number of operations waiting to be dequeued
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close cancels every queued operation, stops the workers and waits for
// running operations to return.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.metrics.setQueued(q.phase, 0)
	q.mu.Unlock()

	for _, op := range dropped {
		op.Cancel()
		q.metrics.observe(q.phase, OutcomeDropped, 0)
	}

	q.cond.Broadcast()
	q.wg.Wait()
}

// next blocks until an operation can be dequeued. It returns nil once the
// queue is closed.
func (q *Queue) next() *Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && (q.suspended || len(q.pending) == 0) {
		q.cond.Wait()
	}
	if q.closed {
		return nil
	}

	op := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.metrics.setQueued(q.phase, len(q.pending))
	return op
}

func (q *Queue) work() {
	for {
		op := q.next()
		if op == nil {
			return
		}

		if op.IsCancelled() {
			q.logger.Debug("Skipping cancelled operation",
				"operation_id", op.ID.String(),
				"phase", string(q.phase),
				"row", op.Row,
			)
			q.metrics.observe(q.phase, OutcomeCancelled, 0)
			continue
		}

		q.metrics.addRunning(q.phase, 1)
		started := time.Now()
		cancelled := op.execute()
		elapsed := time.Since(started)
		q.metrics.addRunning(q.phase, -1)

		outcome := OutcomeCompleted
		if cancelled {
			outcome = OutcomeCancelled
		}
		q.metrics.observe(q.phase, outcome, elapsed)
		q.logger.Debug("Operation finished",
			"operation_id", op.ID.String(),
			"phase", string(q.phase),
			"row", op.Row,
			"outcome", outcome,
			"elapsed", elapsed.String(),
		)
	}
}
