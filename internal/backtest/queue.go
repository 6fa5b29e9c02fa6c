package backtest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/metrics"
)

// Runner executes one backtest. Satisfied by *Engine and by the optimizer's
// per-combination runs.
type Runner interface {
	ID() uuid.UUID
	Run(ctx context.Context) (*Result, error)
}

// QueueEntry tracks one submitted run. Done is closed when the run reaches a
// terminal state, after which Result and Err are safe to read.
type QueueEntry struct {
	ID     uuid.UUID
	Done   chan struct{}
	Result *Result
	Err    error

	cancel context.CancelFunc
}

// TestQueue serializes backtest execution: submissions run strictly in FIFO
// order with at most one run in flight. Pending entries can be cancelled
// before they start; the running entry is cancelled through its context and
// stops at the next bar boundary.
type TestQueue struct {
	mu      sync.Mutex
	pending []*queueItem
	running *queueItem
	wake    chan struct{}
	closed  bool
	logger  *logrus.Logger
	wg      sync.WaitGroup
}

type queueItem struct {
	runner Runner
	entry  *QueueEntry
}

// NewTestQueue creates a queue and starts its worker.
func NewTestQueue(logger *logrus.Logger) *TestQueue {
	if logger == nil {
		logger = logrus.New()
	}
	q := &TestQueue{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Submit appends a run to the queue and returns its entry. Returns nil if
// the queue has been closed.
func (q *TestQueue) Submit(runner Runner) *QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	item := &queueItem{
		runner: runner,
		entry: &QueueEntry{
			ID:   runner.ID(),
			Done: make(chan struct{}),
		},
	}
	q.pending = append(q.pending, item)
	metrics.UpdateQueueDepth(float64(len(q.pending)))
	q.logger.WithFields(logrus.Fields{
		"backtest_id": item.entry.ID,
		"queue_depth": len(q.pending),
	}).Info("Backtest queued")
	q.notify()
	return item.entry
}

// Depth returns the number of pending runs, excluding the one in flight.
func (q *TestQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Cancel removes a pending run or interrupts the running one. Returns false
// when the id is unknown or already finished.
func (q *TestQueue) Cancel(id uuid.UUID) bool {
	q.mu.Lock()
	for i, item := range q.pending {
		if item.entry.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			metrics.UpdateQueueDepth(float64(len(q.pending)))
			item.entry.Err = NewCancelledError("backtest cancelled before it started")
			close(item.entry.Done)
			q.mu.Unlock()
			q.logger.WithField("backtest_id", id).Info("Pending backtest cancelled")
			return true
		}
	}
	if q.running != nil && q.running.entry.ID == id {
		cancel := q.running.entry.cancel
		q.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		q.logger.WithField("backtest_id", id).Info("Running backtest cancelled")
		return true
	}
	q.mu.Unlock()
	return false
}

// Close stops the worker after the current run finishes and fails all
// pending entries.
func (q *TestQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.pending
	q.pending = nil
	running := q.running
	q.mu.Unlock()

	for _, item := range pending {
		item.entry.Err = NewCancelledError("queue shut down")
		close(item.entry.Done)
	}
	if running != nil && running.entry.cancel != nil {
		running.entry.cancel()
	}
	q.notify()
	q.wg.Wait()
}

func (q *TestQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *TestQueue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if q.closed && len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			<-q.wake
			continue
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		ctx, cancel := context.WithCancel(context.Background())
		item.entry.cancel = cancel
		q.running = item
		metrics.UpdateQueueDepth(float64(len(q.pending)))
		metrics.UpdateRunningBacktests(1)
		q.mu.Unlock()

		result, err := item.runner.Run(ctx)
		cancel()

		q.mu.Lock()
		q.running = nil
		metrics.UpdateRunningBacktests(0)
		q.mu.Unlock()

		item.entry.Result = result
		item.entry.Err = err
		close(item.entry.Done)

		if err != nil {
			q.logger.WithFields(logrus.Fields{
				"backtest_id": item.entry.ID,
				"error":       err,
			}).Warn("Queued backtest finished with error")
		} else {
			q.logger.WithField("backtest_id", item.entry.ID).Info("Queued backtest finished")
		}
	}
}
