package threadpool

import "errors"

// Sentinel errors returned by the pool's public API. Callers should test
// with errors.Is because the pool wraps these with contextual detail such
// as the offending id or task description.
var (
	// ErrInvalidArgument is returned by group submissions when elements or
	// fanout is out of range. No task or group record is allocated.
	ErrInvalidArgument = errors.New("threadpool: invalid argument")

	// ErrInvalidTask is returned when a task id is not (or no longer)
	// registered with the pool.
	ErrInvalidTask = errors.New("threadpool: invalid task id")

	// ErrInvalidGroup is returned when a group id is not (or no longer)
	// registered with the pool.
	ErrInvalidGroup = errors.New("threadpool: invalid group id")

	// ErrConcurrentWait is returned when a second caller tries to wait on a
	// task id that already has a waiter. Each task admits at most one waiter.
	ErrConcurrentWait = errors.New("threadpool: another caller is already waiting on this task")

	// ErrAlreadyInitialized is returned by Init when the pool's workers are
	// already running. Call Finish before re-initializing.
	ErrAlreadyInitialized = errors.New("threadpool: pool is already initialized")
)
