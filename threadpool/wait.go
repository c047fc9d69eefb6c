package threadpool

import (
	"fmt"
	"time"

	"github.com/petermattis/goid"
)

// reentrantSleep is how long a worker-waiter sleeps between non-blocking
// polls of its target and the ready queue. A latency versus CPU
// trade-off; platforms with a multi-object wait could do better.
const reentrantSleep = time.Microsecond

// IsTaskCompleted reports whether the task has finished executing. It
// fails with ErrInvalidTask when id is unknown, including after a
// successful WaitForTaskCompletion has consumed the id.
func (p *Pool) IsTaskCompleted(id TaskID) (bool, error) {
	p.mu.Lock()
	t, ok := p.tasks[id]
	if !ok {
		p.mu.Unlock()
		return false, fmt.Errorf("%w: %d", ErrInvalidTask, id)
	}
	completed := t.completed.Load()
	p.mu.Unlock()
	return completed, nil
}

// WaitForTaskCompletion blocks until the task has finished, then removes
// it from the pool. Each task id admits exactly one waiter; a second
// concurrent caller fails with ErrConcurrentWait.
//
// A caller that is itself a pool worker does not block: it polls the
// task's completion and, while the target is unfinished, executes other
// ready tasks inline. This keeps the pool making progress even when
// every worker is waiting on a child task.
func (p *Pool) WaitForTaskCompletion(id TaskID) error {
	p.mu.Lock()
	t, ok := p.tasks[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidTask, id)
	}
	if t.waiting {
		description := t.description
		p.mu.Unlock()
		if description == "" {
			return fmt.Errorf("%w: task %d", ErrConcurrentWait, id)
		}
		return fmt.Errorf("%w: task %q (%d)", ErrConcurrentWait, description, id)
	}
	t.waiting = true
	p.mu.Unlock()

	if p.useNativeLowPriorityThreads && t.lowPriority {
		t.dedicated.join()
		p.mu.Lock()
		freeThread(t.dedicated)
		t.dedicated = nil
		p.mu.Unlock()
	} else {
		gid := goid.Get()
		p.mu.Lock()
		_, isWorker := p.workerIDs[gid]
		p.mu.Unlock()

		if isWorker {
			for {
				if t.done.tryWait() {
					break
				}
				if p.taskAvailable.tryWait() {
					// Solve tasks while they are around.
					p.processTaskQueue()
					continue
				}
				time.Sleep(reentrantSleep)
			}
		} else {
			t.done.wait()
		}
	}

	p.mu.Lock()
	delete(p.tasks, id)
	freeTask(t)
	p.mu.Unlock()
	return nil
}

// IsGroupTaskCompleted reports whether every element of the group has
// been processed. Fails with ErrInvalidGroup when id is unknown.
func (p *Pool) IsGroupTaskCompleted(id GroupID) (bool, error) {
	p.mu.Lock()
	g, ok := p.groups[id]
	if !ok {
		p.mu.Unlock()
		return false, fmt.Errorf("%w: %d", ErrInvalidGroup, id)
	}
	completed := g.completed.Load()
	p.mu.Unlock()
	return completed, nil
}

// WaitForGroupTaskCompletion blocks until every element of the group has
// been processed, then removes the group from the pool. Groups admit a
// single waiter by convention.
func (p *Pool) WaitForGroupTaskCompletion(id GroupID) error {
	p.mu.Lock()
	g, ok := p.groups[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidGroup, id)
	}

	if len(g.dedicatedTasks) > 0 {
		// Dedicated-thread mode: join every thread, then free the tasks
		// and the group. The tasks never free themselves in this mode.
		for _, t := range g.dedicatedTasks {
			t.dedicated.join()
			p.mu.Lock()
			freeThread(t.dedicated)
			t.dedicated = nil
			freeTask(t)
			p.mu.Unlock()
		}
		p.mu.Lock()
		freeGroup(g)
		p.mu.Unlock()
	} else {
		g.done.wait()

		// The waiter joins the finished rendezvous as the +1 participant.
		// Read the target before incrementing; a straggler task may free
		// the group immediately after our increment otherwise.
		maxUsers := int64(g.tasksUsed) + 1
		finished := g.finished.Add(1)
		if finished == maxUsers {
			p.mu.Lock()
			freeGroup(g)
			p.mu.Unlock()
		}
	}

	// Workers never touch the group map, so erasing here is safe.
	p.mu.Lock()
	delete(p.groups, id)
	p.mu.Unlock()
	return nil
}
