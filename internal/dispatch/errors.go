package dispatch

import "errors"

var (
	// ErrNotRunning indicates the worker has not been started or was stopped.
	ErrNotRunning = errors.New("dispatch worker not running")

	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("dispatch worker already running")

	// ErrQueueFull indicates the worker queue is at capacity.
	ErrQueueFull = errors.New("dispatch queue full")
)
