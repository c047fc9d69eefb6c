// Package scheduler drives recurring background jobs through the pool.
package scheduler

import (
	"sync"
	"time"

	"github.com/firasghr/GoThreadPool/threadpool"
)

// Job is one recurring unit of background work. Fn must be safe for
// concurrent use: a slow cycle can overlap the pool's execution of the
// previous submission only if the caller waits elsewhere, but nothing
// stops a host from registering the same function twice.
type Job struct {
	// Name labels the job in pool diagnostics.
	Name string

	// Fn is the work itself.
	Fn func()
}

// Scheduler fans a fixed set of jobs into the pool on a fixed interval.
//
// Architecture:
//   - Start spawns a control goroutine that, every interval, submits each
//     registered job to the pool as a low-priority native task and then
//     waits for the whole batch before sleeping again.  Low priority
//     keeps recurring maintenance work from starving interactive
//     submissions; waiting for the batch keeps slow jobs from piling up
//     behind their own previous cycle.
//   - A stop channel allows clean shutdown: calling Stop closes the
//     channel, which causes the control goroutine to exit after the
//     current cycle completes.
//   - The design is intentionally decoupled: Scheduler does not know what
//     a job does; it only knows how to fan jobs out through the pool.
type Scheduler struct {
	pool     *threadpool.Pool
	interval time.Duration
	jobs     []Job
	stopCh   chan struct{}
	once     sync.Once
}

// NewScheduler creates a Scheduler that submits jobs through pool every
// interval.
func NewScheduler(pool *threadpool.Pool, interval time.Duration, jobs []Job) *Scheduler {
	return &Scheduler{
		pool:     pool,
		interval: interval,
		jobs:     jobs,
		stopCh:   make(chan struct{}),
	}
}

// Start begins continuous job cycles.  It is non-blocking: the control
// goroutine runs in the background until Stop is called.
func (sc *Scheduler) Start() {
	go func() {
		ticker := time.NewTicker(sc.interval)
		defer ticker.Stop()
		for {
			select {
			case <-sc.stopCh:
				return
			case <-ticker.C:
				sc.runCycle()
			}
		}
	}()
}

// runCycle submits every job as a low-priority task and waits for the
// batch. The control goroutine is not a pool worker, so each wait simply
// blocks on the task's completion.
func (sc *Scheduler) runCycle() {
	ids := make([]threadpool.TaskID, 0, len(sc.jobs))
	for _, job := range sc.jobs {
		captured := job
		id := sc.pool.AddNativeTask(func(any) {
			captured.Fn()
		}, nil, false, captured.Name)
		ids = append(ids, id)
	}
	for _, id := range ids {
		// The wait fails only for an unknown id or a second waiter; the
		// scheduler owns these ids, so on an error it abandons the batch.
		if err := sc.pool.WaitForTaskCompletion(id); err != nil {
			return
		}
	}
}

// Stop signals the Scheduler to stop submitting new cycles.  It does not
// wait for in-flight tasks to complete; call Pool.Finish for that.
// Stop is idempotent.
func (sc *Scheduler) Stop() {
	sc.once.Do(func() {
		close(sc.stopCh)
	})
}
