package scheduler

import "errors"

var (
	// ErrDispatcherNotRunning is returned when submitting a job to a stopped dispatcher
	ErrDispatcherNotRunning = errors.New("sync dispatcher is not running")

	// ErrTriggerNotRunning is returned when poking a stopped poll trigger
	ErrTriggerNotRunning = errors.New("poll trigger is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
