package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPeriod   = errors.New("period must be positive")
	ErrInvalidDueTime  = errors.New("due time must not be negative")
	ErrNilAction       = errors.New("action is nil")
	ErrSchedulerClosed = errors.New("scheduler is closed")
	ErrTaskNotFound    = errors.New("task not found")
)

// RegistrationError reports a task rejected by ScheduleTask.
type RegistrationError struct {
	Name string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("schedule task %q: %v", e.Name, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
