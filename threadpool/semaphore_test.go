package threadpool

import (
	"testing"
	"time"
)

func TestSemaphore_TryWait(t *testing.T) {
	s := newSemaphore()
	if s.tryWait() {
		t.Error("tryWait succeeded on a fresh semaphore")
	}
	s.post()
	if !s.tryWait() {
		t.Error("tryWait failed after a post")
	}
	if s.tryWait() {
		t.Error("tryWait succeeded twice after a single post")
	}
}

func TestSemaphore_WakesBlockedWaiter(t *testing.T) {
	s := newSemaphore()
	woke := make(chan struct{})
	go func() {
		s.wait()
		close(woke)
	}()

	s.post()
	select {
	case <-woke:
	case <-time.After(5 * time.Second):
		t.Fatal("post did not wake the blocked waiter")
	}
}

func TestSemaphore_CountAccumulates(t *testing.T) {
	s := newSemaphore()
	for i := 0; i < 5; i++ {
		s.post()
	}
	for i := 0; i < 5; i++ {
		if !s.tryWait() {
			t.Fatalf("tryWait %d failed; posts must accumulate", i)
		}
	}
	if s.tryWait() {
		t.Error("tryWait succeeded past the posted count")
	}
}
