// Package threadpool implements a fixed-size worker thread pool for
// CPU-bound work inside a long-running host process.
//
// The pool accepts two kinds of submissions: single tasks and group tasks
// (a data-parallel fan-out over an integer index range). Work is either
// high priority or low priority; low-priority admission is capped so that
// long-running background jobs can never monopolize the workers. Callers
// can wait for a specific task or group to finish, and a waiter that is
// itself a pool worker turns back into a consumer of the ready queue
// instead of blocking, so the pool cannot deadlock on its own children.
//
// Concurrency model:
//   - One mutex serialises every piece of non-atomic state: both FIFO
//     queues, the id-to-record maps, the worker-id map and the id counter.
//     The mutex is never held across user code or a semaphore wait, so
//     contention is bounded by the submission and dequeue rate, not by
//     how long tasks run.
//   - Workers block on a counting semaphore that is posted once per task
//     appended to the ready queue, and once per worker at shutdown.
//   - Group fan-out uses an atomic post-incremented work index; exactly
//     one task observes the index equal to the element count and signals
//     group completion.
package threadpool

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/petermattis/goid"

	"github.com/firasghr/GoThreadPool/logger"
	"github.com/firasghr/GoThreadPool/metrics"
)

// Pool is a worker thread pool. The zero value is not usable; construct
// with New, then call Init before submitting work and Finish to tear the
// workers down. A Pool is intended to live for the whole process, but it
// may be re-initialized after Finish returns.
type Pool struct {
	// mu guards the queues, the maps, the allocators and lastTask. It is
	// released before running user work and before posting any semaphore.
	mu sync.Mutex

	tasks     map[TaskID]*task
	groups    map[GroupID]*group
	workerIDs map[int64]int
	lastTask  TaskID

	readyQueue         *queue.Queue
	lowPriorityBacklog *queue.Queue

	taskAvailable *semaphore
	exitThreads   atomic.Bool

	lowPriorityThreadsUsed atomic.Int64

	threadCount                 int
	maxLowPriorityThreads       int
	useNativeLowPriorityThreads bool
	running                     bool

	workers sync.WaitGroup

	log *logger.Logger
	met *metrics.Metrics
}

// New creates an uninitialized Pool. log and met may be nil, in which
// case an INFO-level stderr logger and a fresh metrics set are used.
func New(log *logger.Logger, met *metrics.Metrics) *Pool {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}
	if met == nil {
		met = metrics.NewMetrics()
	}
	return &Pool{
		tasks:              make(map[TaskID]*task),
		groups:             make(map[GroupID]*group),
		workerIDs:          make(map[int64]int),
		readyQueue:         queue.New(),
		lowPriorityBacklog: queue.New(),
		taskAvailable:      newSemaphore(),
		log:                log,
		met:                met,
	}
}

// Init starts threadCount persistent workers. A negative threadCount
// selects the platform default (the number of logical CPUs).
//
// When useNativeLowPriorityThreads is true every low-priority task runs
// on its own dedicated thread and the worker quota for low-priority work
// is zero. Otherwise lowPriorityRatio (in (0, 1]) decides how many of the
// workers may run low-priority work at once; the result is clamped to
// [1, threadCount].
//
// Init fails with ErrAlreadyInitialized if the workers are already
// running.
func (p *Pool) Init(threadCount int, useNativeLowPriorityThreads bool, lowPriorityRatio float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyInitialized
	}
	if threadCount < 0 {
		threadCount = runtime.NumCPU()
	}

	if useNativeLowPriorityThreads {
		p.maxLowPriorityThreads = 0
	} else {
		n := int(math.Round(float64(threadCount) * lowPriorityRatio))
		if n < 1 {
			n = 1
		}
		if n > threadCount {
			n = threadCount
		}
		p.maxLowPriorityThreads = n
	}

	p.useNativeLowPriorityThreads = useNativeLowPriorityThreads
	p.threadCount = threadCount
	p.exitThreads.Store(false)
	p.running = true

	p.workers.Add(threadCount)
	for i := 0; i < threadCount; i++ {
		go p.workerLoop(i)
	}

	p.log.Debugf("threadpool: started %d workers (max low priority %d, native low priority %v)",
		threadCount, p.maxLowPriorityThreads, useNativeLowPriorityThreads)
	return nil
}

// workerLoop is the body of one persistent worker. The worker records its
// goroutine id first so that re-entrant waits can recognise it, then
// consumes one ready task per semaphore unit until shutdown.
func (p *Pool) workerLoop(index int) {
	defer p.workers.Done()

	gid := goid.Get()
	p.mu.Lock()
	p.workerIDs[gid] = index
	p.mu.Unlock()

	for {
		p.taskAvailable.wait()
		if p.exitThreads.Load() {
			return
		}
		p.processTaskQueue()
	}
}

// processTaskQueue pops the head of the ready queue and executes it. It
// is called by workers after a semaphore wait and by worker-waiters that
// drained a semaphore unit cooperatively.
func (p *Pool) processTaskQueue() {
	p.mu.Lock()
	if p.readyQueue.Length() == 0 {
		// Shutdown posts can outnumber queued tasks.
		p.mu.Unlock()
		return
	}
	t := p.readyQueue.Remove().(*task)
	p.mu.Unlock()
	p.processTask(t)
}

// processTask runs one task to completion. For group tasks it claims work
// indices until the range is exhausted. The task's priority is captured
// up front because group tasks free themselves before the low-priority
// bookkeeping at the end.
func (p *Pool) processTask(t *task) {
	lowPriority := t.lowPriority

	if t.group != nil {
		p.processGroupTask(t)
	} else {
		if t.nativeFunc != nil {
			t.nativeFunc(t.userdata)
		} else {
			p.callCallable(t)
		}
		t.completed.Store(true)
		t.done.post()
		p.met.IncrementTasksCompleted()
	}

	if !p.useNativeLowPriorityThreads && lowPriority {
		// A low-priority slot was released; promote one backlog entry into
		// the ready queue, or shrink the in-use count if there is none.
		// Pop, append and counter adjust form a single critical section;
		// the semaphore post happens after release.
		post := false
		p.mu.Lock()
		if p.lowPriorityBacklog.Length() > 0 {
			lp := p.lowPriorityBacklog.Remove().(*task)
			p.readyQueue.Add(lp)
			post = true
		} else {
			p.lowPriorityThreadsUsed.Add(-1)
		}
		p.mu.Unlock()
		if post {
			p.taskAvailable.post()
			p.met.IncrementBacklogPromoted()
		}
	}
}

// processGroupTask is the fan-out body shared by all tasks of a group.
// Indices are claimed by atomic post-increment; the task that claims the
// value exactly equal to max is the first to observe exhaustion and owns
// completion signalling. Tasks that claim a larger value are stragglers.
func (p *Pool) processGroupTask(t *task) {
	g := t.group

	doPost := false
	for {
		workIndex := g.index.Add(1) - 1
		if workIndex >= g.max {
			doPost = workIndex == g.max
			break
		}
		if t.nativeGroupFunc != nil {
			t.nativeGroupFunc(t.userdata, int(workIndex))
		} else {
			if _, err := t.callable.Call(int(workIndex)); err != nil {
				p.met.IncrementScriptErrors()
				p.log.Errorf("threadpool: group task %q index %d: script call: %v", t.description, workIndex, err)
			}
		}
	}

	if t.lowPriority && p.useNativeLowPriorityThreads {
		// Dedicated-thread mode. The task signals its own completion; the
		// waiter joins the threads and frees both the tasks and the group.
		t.completed.Store(true)
		t.done.post()
		if doPost {
			g.completed.Store(true)
			p.met.IncrementGroupsCompleted()
		}
		return
	}

	if doPost {
		g.done.post()
		g.completed.Store(true)
		p.met.IncrementGroupsCompleted()
	}

	// Rendezvous with the waiter: tasksUsed participants plus the waiter
	// each increment finished once; whoever observes the final count frees
	// the group. Read the target before incrementing, because another
	// participant may free the group right after our increment.
	maxUsers := int64(g.tasksUsed) + 1
	finished := g.finished.Add(1)
	if finished == maxUsers {
		p.mu.Lock()
		freeGroup(g)
		p.mu.Unlock()
	}

	// Group tasks free themselves; they never had a map entry.
	p.mu.Lock()
	freeTask(t)
	p.mu.Unlock()
}

// callCallable invokes a zero-argument callable and reports a call error
// through the logger and metrics. The task still counts as completed.
func (p *Pool) callCallable(t *task) {
	if t.callable == nil {
		return
	}
	if _, err := t.callable.Call(); err != nil {
		p.met.IncrementScriptErrors()
		p.log.Errorf("threadpool: task %q: script call: %v", t.description, err)
	}
}

// runDedicated is the body of a dedicated low-priority thread: it runs
// exactly one task and exits.
func (p *Pool) runDedicated(t *task) {
	p.processTask(t)
}

// postTask applies the dispatch policy to one freshly built task:
//
//  1. High-priority work, and low-priority work while the quota has room,
//     goes to the ready queue.
//  2. Low-priority work in native mode goes to a fresh dedicated thread.
//  3. Low-priority work past the quota goes to the backlog, without a
//     semaphore post; a finishing low-priority task will promote it.
func (p *Pool) postTask(t *task, highPriority bool) {
	p.mu.Lock()
	t.lowPriority = !highPriority
	if !highPriority && p.useNativeLowPriorityThreads {
		nt := allocThread()
		t.dedicated = nt
		p.mu.Unlock()
		p.met.IncrementDedicatedThreads()
		nt.start(func() { p.runDedicated(t) })
	} else if highPriority || p.lowPriorityThreadsUsed.Load() < int64(p.maxLowPriorityThreads) {
		p.readyQueue.Add(t)
		if !highPriority {
			p.lowPriorityThreadsUsed.Add(1)
		}
		p.mu.Unlock()
		p.taskAvailable.post()
	} else {
		// Low-priority quota saturated; defer.
		p.lowPriorityBacklog.Add(t)
		p.mu.Unlock()
		p.met.IncrementBacklogDeferred()
	}
}

// AddTask submits a callable as a single task and returns its id.
func (p *Pool) AddTask(c Callable, highPriority bool, description string) TaskID {
	p.mu.Lock()
	t := allocTask()
	id := p.lastTask
	p.lastTask++
	t.id = id
	t.callable = c
	t.description = description
	p.tasks[id] = t
	p.mu.Unlock()

	p.postTask(t, highPriority)
	p.met.IncrementTasksSubmitted()
	return id
}

// AddNativeTask submits a compiled-in function as a single task and
// returns its id. userdata is handed to fn unchanged.
func (p *Pool) AddNativeTask(fn NativeTaskFunc, userdata any, highPriority bool, description string) TaskID {
	p.mu.Lock()
	t := allocTask()
	id := p.lastTask
	p.lastTask++
	t.id = id
	t.nativeFunc = fn
	t.userdata = userdata
	t.description = description
	p.tasks[id] = t
	p.mu.Unlock()

	p.postTask(t, highPriority)
	p.met.IncrementTasksSubmitted()
	return id
}

// AddGroupTask submits a callable as a parallel fan-out over
// [0, elements) executed by fanout cooperating tasks. A negative fanout
// selects the worker count. elements must be positive and fanout must
// not be zero; otherwise InvalidTaskID and ErrInvalidArgument are
// returned and nothing is allocated.
func (p *Pool) AddGroupTask(c Callable, elements, fanout int, highPriority bool, description string) (GroupID, error) {
	return p.addGroupTask(c, nil, nil, elements, fanout, highPriority, description)
}

// AddNativeGroupTask submits a compiled-in function as a parallel
// fan-out over [0, elements). See AddGroupTask for the argument rules.
func (p *Pool) AddNativeGroupTask(fn NativeGroupTaskFunc, userdata any, elements, fanout int, highPriority bool, description string) (GroupID, error) {
	return p.addGroupTask(nil, fn, userdata, elements, fanout, highPriority, description)
}

func (p *Pool) addGroupTask(c Callable, fn NativeGroupTaskFunc, userdata any, elements, fanout int, highPriority bool, description string) (GroupID, error) {
	if elements <= 0 {
		return InvalidTaskID, fmt.Errorf("%w: elements must be positive, got %d", ErrInvalidArgument, elements)
	}
	if fanout < 0 {
		fanout = p.ThreadCount()
	}
	if fanout <= 0 {
		return InvalidTaskID, fmt.Errorf("%w: fanout must resolve to a positive task count", ErrInvalidArgument)
	}

	p.mu.Lock()
	g := allocGroup()
	id := p.lastTask
	p.lastTask++
	g.id = id
	g.max = int64(elements)
	g.tasksUsed = fanout

	posted := make([]*task, fanout)
	for i := 0; i < fanout; i++ {
		t := allocTask()
		t.callable = c
		t.nativeGroupFunc = fn
		t.userdata = userdata
		t.description = description
		t.group = g
		// Fan-out tasks have no id of their own and no map entry.
		posted[i] = t
	}
	p.groups[id] = g
	p.mu.Unlock()

	if !highPriority && p.useNativeLowPriorityThreads {
		g.dedicatedTasks = make([]*task, 0, fanout)
	}

	for _, t := range posted {
		p.postTask(t, highPriority)
		if !highPriority && p.useNativeLowPriorityThreads {
			g.dedicatedTasks = append(g.dedicatedTasks, t)
		}
	}

	p.met.IncrementGroupsSubmitted()
	return id, nil
}

// ThreadCount returns the number of persistent workers.
func (p *Pool) ThreadCount() int {
	p.mu.Lock()
	n := p.threadCount
	p.mu.Unlock()
	return n
}

// Finish shuts the pool down: it reports any backlog task that will never
// run, signals the workers to exit, wakes them all and joins them.
// In-flight tasks finish; queued ready tasks and the backlog are dropped.
// Finish is a no-op if the pool is not running.
func (p *Pool) Finish() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	for i := 0; i < p.lowPriorityBacklog.Length(); i++ {
		t := p.lowPriorityBacklog.Get(i).(*task)
		p.log.Warnf("threadpool: task %q (%d) was never re-claimed from the low-priority backlog", t.description, t.id)
	}
	threadCount := p.threadCount
	p.mu.Unlock()

	p.exitThreads.Store(true)
	for i := 0; i < threadCount; i++ {
		p.taskAvailable.post()
	}
	p.workers.Wait()

	// Drop whatever never ran and drain leftover semaphore posts so a
	// re-initialized pool starts from a clean slate. The id maps are left
	// alone: completed-but-unclaimed tasks must stay reclaimable.
	p.mu.Lock()
	p.readyQueue = queue.New()
	p.lowPriorityBacklog = queue.New()
	for p.taskAvailable.tryWait() {
	}
	p.workerIDs = make(map[int64]int)
	p.running = false
	p.threadCount = 0
	p.mu.Unlock()

	p.log.Debug("threadpool: all workers joined")
}
