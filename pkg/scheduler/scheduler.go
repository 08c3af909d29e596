// Package scheduler runs named, repeating tasks on a fixed period.
//
// Each task owns a single goroutine that waits for its due time, runs the
// action, and repeats. Invocations of one task therefore never overlap; when
// an invocation outlasts its period the missed slots are skipped rather than
// queued. Errors and panics raised by an action are logged and counted and
// never stop the task or the scheduler.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/downfa11-org/cursus-quickstart/pkg/metrics"
	"github.com/downfa11-org/cursus-quickstart/util"
)

type Scheduler struct {
	mu      sync.Mutex
	tasks   map[TaskID]*task
	closed  bool
	wg      sync.WaitGroup
	metrics bool
}

type Option func(*Scheduler)

// WithMetrics toggles prometheus reporting. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(s *Scheduler) {
		s.metrics = enabled
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:   make(map[TaskID]*task),
		metrics: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultScheduler = sync.OnceValue(func() *Scheduler { return New() })

// Default returns the process-wide scheduler.
func Default() *Scheduler {
	return defaultScheduler()
}

// ScheduleTask registers action to run after dueTime and then every period.
// The name is for diagnostics only and need not be unique.
func (s *Scheduler) ScheduleTask(name string, action Action, dueTime, period time.Duration) (TaskID, error) {
	switch {
	case action == nil:
		return "", &RegistrationError{Name: name, Err: ErrNilAction}
	case period <= 0:
		return "", &RegistrationError{Name: name, Err: fmt.Errorf("%w: %v", ErrInvalidPeriod, period)}
	case dueTime < 0:
		return "", &RegistrationError{Name: name, Err: fmt.Errorf("%w: %v", ErrInvalidDueTime, dueTime)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		id:      TaskID(uuid.NewString()),
		name:    name,
		action:  action,
		dueTime: dueTime,
		period:  period,
		ctx:     ctx,
		cancel:  cancel,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return "", &RegistrationError{Name: name, Err: ErrSchedulerClosed}
	}
	s.tasks[t.id] = t
	s.wg.Add(1)
	s.mu.Unlock()

	if s.metrics {
		metrics.ActiveTasks.Inc()
	}
	util.Debug("Scheduled task '%s' (id=%s, due=%v, period=%v)", name, t.id, dueTime, period)

	go s.run(t)
	return t.id, nil
}

// ShutdownTask stops future invocations of the task. An invocation already
// running is not interrupted beyond cancelling its context. It is safe to
// call from inside the task's own action. Unknown or already shut down ids
// return ErrTaskNotFound.
func (s *Scheduler) ShutdownTask(id TaskID) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("shutdown task %s: %w", id, ErrTaskNotFound)
	}

	if t.stop() {
		if s.metrics {
			metrics.ActiveTasks.Dec()
		}
		util.Debug("Task '%s' (id=%s) shut down after %d runs", t.name, t.id, t.runs.Load())
	}
	return nil
}

// Tasks returns a snapshot of the registered tasks ordered by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		infos = append(infos, t.info())
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Close shuts down every task, rejects new registrations and waits for the
// task goroutines to exit or for ctx to expire.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	tasks := make([]*task, 0, len(s.tasks))
	for id, t := range s.tasks {
		tasks = append(tasks, t)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		if t.stop() && s.metrics {
			metrics.ActiveTasks.Dec()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler close: %w", ctx.Err())
	}
}

func (s *Scheduler) run(t *task) {
	defer s.wg.Done()

	timer := time.NewTimer(t.dueTime)
	defer timer.Stop()
	next := time.Now().Add(t.dueTime)

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-timer.C:
		}

		if !t.begin() {
			return
		}
		s.invoke(t)

		next = next.Add(t.period)
		now := time.Now()
		if now.After(next) {
			missed := now.Sub(next)/t.period + 1
			next = next.Add(missed * t.period)
			t.skipped.Add(int64(missed))
			if s.metrics {
				metrics.TaskSkipped.WithLabelValues(t.name).Add(float64(missed))
			}
			util.Debug("Task '%s' overran its period, skipped %d invocation(s)", t.name, missed)
		}
		timer.Reset(next.Sub(now))
	}
}

func (s *Scheduler) invoke(t *task) {
	t.runs.Add(1)
	if s.metrics {
		metrics.TaskRuns.WithLabelValues(t.name).Inc()
	}

	defer func() {
		if r := recover(); r != nil {
			s.fail(t, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := t.action(t.ctx); err != nil {
		s.fail(t, err)
	}
}

func (s *Scheduler) fail(t *task, err error) {
	t.failures.Add(1)
	if s.metrics {
		metrics.TaskFailures.WithLabelValues(t.name).Inc()
	}
	util.Error("Task '%s' (id=%s) failed: %v", t.name, t.id, err)
}
