package threadpool

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
)

// TaskID identifies a submitted task. Task and group ids share a single
// monotonically assigned space, so a GroupID is a TaskID by another name.
type TaskID uint64

// GroupID identifies a submitted group task.
type GroupID = TaskID

// InvalidTaskID is the sentinel returned by failed group submissions.
const InvalidTaskID TaskID = math.MaxUint64

// NativeTaskFunc is the signature of a single compiled-in work item.
type NativeTaskFunc func(userdata any)

// NativeGroupTaskFunc is the signature of one iteration of a group work
// item. index is the claimed element in [0, elements).
type NativeGroupTaskFunc func(userdata any, index int)

// Callable is a scripted or otherwise opaque work item. Single tasks
// invoke it with no arguments; group tasks invoke it with one int
// argument, the claimed work index. A non-nil error is reported through
// the pool's logger and metrics; it does not abort the task.
//
// The callable package provides an otto-backed implementation; hosts may
// supply their own.
type Callable interface {
	Call(args ...any) (any, error)
}

// task is one unit of work owned by the pool. It is either a singleton
// (group == nil) or one fan-out worker of a group.
//
// Ownership: the pool allocates a task at submission and frees it when
// the waiter returns (singletons), when the task finishes its share of a
// cooperative group, or when the group waiter joins its dedicated thread.
// A task sits on at most one of the two FIFO queues at any time.
type task struct {
	id              TaskID
	nativeFunc      NativeTaskFunc
	nativeGroupFunc NativeGroupTaskFunc
	userdata        any
	callable        Callable
	description     string
	lowPriority     bool
	group           *group

	// completed transitions false to true exactly once; done is posted
	// exactly once alongside it. Group fan-out tasks only use these in
	// dedicated-thread mode, where the waiter joins threads instead of
	// waiting on the group semaphore.
	completed atomic.Bool
	done      *semaphore

	// waiting guards the at-most-one-waiter rule. Written under the pool
	// mutex only.
	waiting bool

	// dedicated is set when the task runs on its own pinned thread rather
	// than a pool worker.
	dedicated *nativeThread
}

// group is a parallel fan-out over [0, max), executed by tasksUsed
// cooperating tasks.
type group struct {
	id        TaskID
	max       int64
	index     atomic.Int64
	tasksUsed int

	// finished counts participants that completed their share, plus the
	// waiter. Whoever observes finished == tasksUsed+1 frees the group,
	// which makes the free happen exactly once no matter whether the
	// waiter or the last straggler task gets there last.
	finished  atomic.Int64
	completed atomic.Bool
	done      *semaphore

	// dedicatedTasks is populated only for low-priority groups when the
	// pool runs low-priority work on dedicated threads; the waiter joins
	// and frees them.
	dedicatedTasks []*task
}

// nativeThread is a handle to a short-lived thread used for one
// low-priority task. The goroutine is pinned to an OS thread for its
// lifetime so long-running background work gets its own kernel thread
// instead of stalling a P shared with pool workers.
type nativeThread struct {
	finished chan struct{}
}

func (nt *nativeThread) start(fn func()) {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		fn()
		close(nt.finished)
	}()
}

// join blocks until the thread's work function has returned.
func (nt *nativeThread) join() {
	<-nt.finished
}

// Record allocators. Tasks and groups are linked into queues and handed
// between a dispatcher and one worker by pointer, so records come from
// sync.Pool slabs rather than churning the general heap on the hot path.
// All alloc and free calls happen under the pool mutex; records are fully
// reset at alloc time so no state (in particular semaphore counts, which
// can be left non-zero by dedicated-mode group tasks) leaks across reuse.

var taskAllocator = sync.Pool{New: func() any { return new(task) }}

func allocTask() *task {
	t := taskAllocator.Get().(*task)
	t.id = 0
	t.nativeFunc = nil
	t.nativeGroupFunc = nil
	t.userdata = nil
	t.callable = nil
	t.description = ""
	t.lowPriority = false
	t.group = nil
	t.completed.Store(false)
	t.done = newSemaphore()
	t.waiting = false
	t.dedicated = nil
	return t
}

func freeTask(t *task) {
	// Drop references eagerly so pooled records do not pin user data.
	t.userdata = nil
	t.callable = nil
	t.group = nil
	t.done = nil
	t.dedicated = nil
	taskAllocator.Put(t)
}

var groupAllocator = sync.Pool{New: func() any { return new(group) }}

func allocGroup() *group {
	g := groupAllocator.Get().(*group)
	g.id = 0
	g.max = 0
	g.index.Store(0)
	g.tasksUsed = 0
	g.finished.Store(0)
	g.completed.Store(false)
	g.done = newSemaphore()
	g.dedicatedTasks = nil
	return g
}

func freeGroup(g *group) {
	g.done = nil
	g.dedicatedTasks = nil
	groupAllocator.Put(g)
}

var threadAllocator = sync.Pool{New: func() any { return new(nativeThread) }}

func allocThread() *nativeThread {
	nt := threadAllocator.Get().(*nativeThread)
	nt.finished = make(chan struct{})
	return nt
}

func freeThread(nt *nativeThread) {
	nt.finished = nil
	threadAllocator.Put(nt)
}
