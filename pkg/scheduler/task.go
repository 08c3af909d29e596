package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// TaskID is the opaque handle returned by ScheduleTask.
type TaskID string

// Action is one unit of scheduled work. The context is cancelled once the
// task is shut down.
type Action func(ctx context.Context) error

type TaskState int32

const (
	TaskActive TaskState = iota
	TaskStopped
)

func (s TaskState) String() string {
	if s == TaskStopped {
		return "stopped"
	}
	return "active"
}

// TaskInfo is a diagnostic snapshot of a registered task.
type TaskInfo struct {
	ID       TaskID
	Name     string
	DueTime  time.Duration
	Period   time.Duration
	State    TaskState
	Runs     int64
	Failures int64
	Skipped  int64
}

type task struct {
	id      TaskID
	name    string
	action  Action
	dueTime time.Duration
	period  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state TaskState

	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
}

// begin reports whether an invocation may start. It shares the lock with
// stop, so once stop has returned no further invocation begins.
func (t *task) begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == TaskActive
}

// stop marks the task stopped and reports whether this call did it.
func (t *task) stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TaskStopped {
		return false
	}
	t.state = TaskStopped
	t.cancel()
	return true
}

func (t *task) info() TaskInfo {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	return TaskInfo{
		ID:       t.id,
		Name:     t.name,
		DueTime:  t.dueTime,
		Period:   t.period,
		State:    state,
		Runs:     t.runs.Load(),
		Failures: t.failures.Load(),
		Skipped:  t.skipped.Load(),
	}
}
