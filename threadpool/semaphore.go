package threadpool

import "sync"

// semaphore is a counting semaphore with a non-blocking acquire.
//
// The pool needs three operations the ecosystem semaphores do not offer
// together: post from an initial count of zero, an unbounded count (the
// task-available semaphore is posted once per queued task), and a tryWait
// used by the cooperative re-entrant wait loop. golang.org/x/sync's
// Weighted starts full and panics when released past its capacity, so a
// small cond-based implementation is used instead.
type semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newSemaphore() *semaphore {
	s := &semaphore{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// post increments the count and wakes one waiter.
func (s *semaphore) post() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	s.cond.Signal()
}

// wait blocks until the count is positive, then consumes one unit.
func (s *semaphore) wait() {
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
}

// tryWait consumes one unit if available and reports whether it did.
// It never blocks.
func (s *semaphore) tryWait() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	return true
}
