// Package rebalance waits for a consumer's queue assignment to reach an
// expected size by polling it on a scheduler task.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/downfa11-org/cursus-quickstart/pkg/metrics"
	"github.com/downfa11-org/cursus-quickstart/pkg/scheduler"
	"github.com/downfa11-org/cursus-quickstart/pkg/types"
	"github.com/downfa11-org/cursus-quickstart/util"
)

const TaskName = "WaitQueueAllocationComplete"

var (
	ErrWaitTimeout          = errors.New("timed out waiting for queue assignment")
	ErrWaitCancelled        = errors.New("queue assignment wait cancelled")
	ErrInvalidExpectedCount = errors.New("expected queue count must not be negative")
	ErrInvalidPollInterval  = errors.New("poll interval must be positive")
)

// WaitError carries the last observed assignment of a wait that gave up.
type WaitError struct {
	Expected int
	Last     []types.MessageQueue
	Err      error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("waiting for %d queues (last saw %d): %v", e.Expected, len(e.Last), e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}

// QueueSource exposes the consumer's current assignment.
type QueueSource interface {
	GetCurrentQueues() []types.MessageQueue
}

type QueueSourceFunc func() []types.MessageQueue

func (f QueueSourceFunc) GetCurrentQueues() []types.MessageQueue {
	return f()
}

type Barrier struct {
	sched *scheduler.Scheduler
}

func NewBarrier(sched *scheduler.Scheduler) *Barrier {
	if sched == nil {
		sched = scheduler.Default()
	}
	return &Barrier{sched: sched}
}

// WaitForAssignment blocks until src reports exactly expected distinct
// queues or ctx is done. The polling task is shut down in both cases.
func (b *Barrier) WaitForAssignment(ctx context.Context, src QueueSource, expected int, pollInterval time.Duration) ([]types.MessageQueue, error) {
	w, err := b.Start(src, expected, pollInterval)
	if err != nil {
		return nil, err
	}
	return w.Wait(ctx)
}

// WaitForAssignmentTimeout is WaitForAssignment with a deadline. A
// non-positive timeout waits indefinitely.
func (b *Barrier) WaitForAssignmentTimeout(src QueueSource, expected int, pollInterval, timeout time.Duration) ([]types.MessageQueue, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return b.WaitForAssignment(ctx, src, expected, pollInterval)
}

// Start begins polling without blocking the caller.
func (b *Barrier) Start(src QueueSource, expected int, pollInterval time.Duration) (*Waiter, error) {
	if expected < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidExpectedCount, expected)
	}
	if pollInterval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPollInterval, pollInterval)
	}

	w := &Waiter{
		sched:     b.sched,
		expected:  expected,
		started:   time.Now(),
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}

	id, err := b.sched.ScheduleTask(TaskName, w.poll(src), pollInterval, pollInterval)
	if err != nil {
		return nil, fmt.Errorf("start assignment wait: %w", err)
	}
	w.setTask(id)
	return w, nil
}

// Waiter is a pending assignment wait.
type Waiter struct {
	sched    *scheduler.Scheduler
	expected int
	started  time.Time

	done       chan struct{}
	cancelled  chan struct{}
	cancelOnce sync.Once

	mu       sync.Mutex
	taskID   scheduler.TaskID
	stopped  bool
	resolved bool
	result   []types.MessageQueue
	last     []types.MessageQueue
}

func (w *Waiter) poll(src QueueSource) scheduler.Action {
	return func(context.Context) error {
		queues := types.DistinctQueues(src.GetCurrentQueues())
		metrics.AssignedQueues.Set(float64(len(queues)))

		w.mu.Lock()
		w.last = queues
		w.mu.Unlock()

		if len(queues) == w.expected {
			w.resolve(queues)
		} else {
			util.Debug("Waiting for queue allocation: %d/%d [%s]", len(queues), w.expected, types.QueueIDs(queues))
		}
		return nil
	}
}

func (w *Waiter) resolve(queues []types.MessageQueue) {
	w.mu.Lock()
	if w.resolved {
		w.mu.Unlock()
		return
	}
	w.resolved = true
	w.result = queues
	w.mu.Unlock()

	close(w.done)
	metrics.RebalanceWait.Observe(time.Since(w.started).Seconds())
	util.Info("Consumer load balance finished. Queue allocation result: %s", types.QueueIDs(queues))
	w.stopPolling()
}

func (w *Waiter) setTask(id scheduler.TaskID) {
	w.mu.Lock()
	w.taskID = id
	w.mu.Unlock()

	// the first poll may have resolved before the id was known
	select {
	case <-w.done:
		w.stopPolling()
	case <-w.cancelled:
		w.stopPolling()
	default:
	}
}

func (w *Waiter) stopPolling() {
	w.mu.Lock()
	id := w.taskID
	if id == "" || w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	if err := w.sched.ShutdownTask(id); err != nil && !errors.Is(err, scheduler.ErrTaskNotFound) {
		util.Warn("failed to stop assignment polling: %v", err)
	}
}

// Done is closed once the expected assignment has been observed.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

func (w *Waiter) Ready() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Result returns the resolved assignment, if any.
func (w *Waiter) Result() ([]types.MessageQueue, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result, w.resolved
}

// Last returns the most recently polled assignment.
func (w *Waiter) Last() []types.MessageQueue {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Cancel stops polling and releases any Wait callers. It is a no-op once
// the wait has resolved.
func (w *Waiter) Cancel() {
	w.cancelOnce.Do(func() { close(w.cancelled) })
	w.stopPolling()
}

// Wait blocks until the assignment resolves, the waiter is cancelled or ctx
// is done. Giving up on ctx stops the polling task.
func (w *Waiter) Wait(ctx context.Context) ([]types.MessageQueue, error) {
	select {
	case <-w.done:
		return w.result, nil
	case <-w.cancelled:
		if w.Ready() {
			return w.result, nil
		}
		return nil, &WaitError{Expected: w.expected, Last: w.Last(), Err: ErrWaitCancelled}
	case <-ctx.Done():
		if w.Ready() {
			return w.result, nil
		}
		w.Cancel()
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrWaitTimeout, err)
		}
		return nil, &WaitError{Expected: w.expected, Last: w.Last(), Err: err}
	}
}
