// Package metrics provides lightweight, lock-free pool counters using
// atomic operations so they impose minimal overhead on hot paths.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics tracks aggregate statistics for the thread pool.
//
// All counters are accessed exclusively through atomic operations, which means:
//   - There is no mutex contention even with every worker and submitter
//     bumping counters at once.
//   - The struct may be embedded or passed as a pointer without additional
//     synchronisation.
//   - Reads and writes are linearisable: a value read after a write always
//     reflects at least that write.
type Metrics struct {
	// TasksSubmitted is the number of single tasks accepted since startup.
	TasksSubmitted uint64

	// TasksCompleted is the number of single tasks that finished executing.
	TasksCompleted uint64

	// GroupsSubmitted is the number of group tasks accepted since startup.
	GroupsSubmitted uint64

	// GroupsCompleted is the number of groups whose full index range has
	// been processed.
	GroupsCompleted uint64

	// BacklogDeferred is the number of low-priority tasks parked on the
	// backlog because the admission quota was saturated.
	BacklogDeferred uint64

	// BacklogPromoted is the number of backlog tasks later promoted into
	// the ready queue.
	BacklogPromoted uint64

	// DedicatedThreads is the number of dedicated low-priority threads
	// spawned (native low-priority mode only).
	DedicatedThreads uint64

	// ScriptErrors is the number of callable invocations that reported a
	// call error. The pool treats the work item as completed regardless.
	ScriptErrors uint64

	// startTime records when the metrics instance was created so that
	// TasksPerSecond can compute a meaningful rate.
	startTime time.Time
}

// NewMetrics creates a Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// IncrementTasksSubmitted atomically increments the submitted-tasks counter.
func (m *Metrics) IncrementTasksSubmitted() {
	atomic.AddUint64(&m.TasksSubmitted, 1)
}

// IncrementTasksCompleted atomically increments the completed-tasks counter.
func (m *Metrics) IncrementTasksCompleted() {
	atomic.AddUint64(&m.TasksCompleted, 1)
}

// IncrementGroupsSubmitted atomically increments the submitted-groups counter.
func (m *Metrics) IncrementGroupsSubmitted() {
	atomic.AddUint64(&m.GroupsSubmitted, 1)
}

// IncrementGroupsCompleted atomically increments the completed-groups counter.
func (m *Metrics) IncrementGroupsCompleted() {
	atomic.AddUint64(&m.GroupsCompleted, 1)
}

// IncrementBacklogDeferred atomically increments the deferred counter.
func (m *Metrics) IncrementBacklogDeferred() {
	atomic.AddUint64(&m.BacklogDeferred, 1)
}

// IncrementBacklogPromoted atomically increments the promoted counter.
func (m *Metrics) IncrementBacklogPromoted() {
	atomic.AddUint64(&m.BacklogPromoted, 1)
}

// IncrementDedicatedThreads atomically increments the dedicated-threads counter.
func (m *Metrics) IncrementDedicatedThreads() {
	atomic.AddUint64(&m.DedicatedThreads, 1)
}

// IncrementScriptErrors atomically increments the script-error counter.
func (m *Metrics) IncrementScriptErrors() {
	atomic.AddUint64(&m.ScriptErrors, 1)
}

// TasksPerSecond returns the average single-task completion rate since
// the Metrics instance was created.  Returns 0 if called in the same
// wall-clock instant as creation to avoid division by zero.
func (m *Metrics) TasksPerSecond() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&m.TasksCompleted)) / elapsed
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	TasksSubmitted   uint64 `json:"tasks_submitted"`
	TasksCompleted   uint64 `json:"tasks_completed"`
	GroupsSubmitted  uint64 `json:"groups_submitted"`
	GroupsCompleted  uint64 `json:"groups_completed"`
	BacklogDeferred  uint64 `json:"backlog_deferred"`
	BacklogPromoted  uint64 `json:"backlog_promoted"`
	DedicatedThreads uint64 `json:"dedicated_threads"`
	ScriptErrors     uint64 `json:"script_errors"`
}

// Snapshot returns a point-in-time copy of the counters.  Because the
// atomic loads are not performed under a single lock, the snapshot may be
// very slightly inconsistent at nanosecond granularity, which is
// acceptable for monitoring purposes.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TasksSubmitted:   atomic.LoadUint64(&m.TasksSubmitted),
		TasksCompleted:   atomic.LoadUint64(&m.TasksCompleted),
		GroupsSubmitted:  atomic.LoadUint64(&m.GroupsSubmitted),
		GroupsCompleted:  atomic.LoadUint64(&m.GroupsCompleted),
		BacklogDeferred:  atomic.LoadUint64(&m.BacklogDeferred),
		BacklogPromoted:  atomic.LoadUint64(&m.BacklogPromoted),
		DedicatedThreads: atomic.LoadUint64(&m.DedicatedThreads),
		ScriptErrors:     atomic.LoadUint64(&m.ScriptErrors),
	}
}
