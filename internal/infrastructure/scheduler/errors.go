package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownJobKind is returned by an executor handed a job it cannot run
	ErrUnknownJobKind = errors.New("unknown job kind")
)
