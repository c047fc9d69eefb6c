package threadpool

// Stats is a point-in-time snapshot of the pool's internal state, taken
// under the pool mutex. Dashboard and monitor consumers poll it; the
// numbers may be stale by the time they are read.
type Stats struct {
	// Workers is the number of persistent worker threads (0 when the pool
	// is not initialized).
	Workers int `json:"workers"`

	// ReadyQueueLength is the number of tasks eligible for immediate
	// execution.
	ReadyQueueLength int `json:"ready_queue_length"`

	// LowPriorityBacklogLength is the number of low-priority tasks
	// deferred because the quota is saturated.
	LowPriorityBacklogLength int `json:"low_priority_backlog_length"`

	// LowPriorityThreadsUsed is how many low-priority tasks are queued or
	// executing on pool workers right now (cooperative mode only).
	LowPriorityThreadsUsed int64 `json:"low_priority_threads_used"`

	// MaxLowPriorityThreads is the admission quota for low-priority work
	// (0 in native low-priority mode).
	MaxLowPriorityThreads int `json:"max_low_priority_threads"`

	// PendingTasks is the number of single tasks whose ids are still
	// registered (submitted and not yet reclaimed by a waiter).
	PendingTasks int `json:"pending_tasks"`

	// PendingGroups is the number of groups whose ids are still
	// registered.
	PendingGroups int `json:"pending_groups"`

	// LastTaskID is the next id the generator will assign.
	LastTaskID uint64 `json:"last_task_id"`
}

// Stats returns a consistent snapshot of the pool state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Workers:                  p.threadCount,
		ReadyQueueLength:         p.readyQueue.Length(),
		LowPriorityBacklogLength: p.lowPriorityBacklog.Length(),
		LowPriorityThreadsUsed:   p.lowPriorityThreadsUsed.Load(),
		MaxLowPriorityThreads:    p.maxLowPriorityThreads,
		PendingTasks:             len(p.tasks),
		PendingGroups:            len(p.groups),
		LastTaskID:               uint64(p.lastTask),
	}
	p.mu.Unlock()
	return s
}
