package monitor_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/firasghr/GoThreadPool/logger"
	"github.com/firasghr/GoThreadPool/metrics"
	"github.com/firasghr/GoThreadPool/monitor"
	"github.com/firasghr/GoThreadPool/threadpool"
)

type stubPool struct{ stats threadpool.Stats }

func (s stubPool) Stats() threadpool.Stats { return s.stats }

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSink) AddLog(level, message string) {
	r.mu.Lock()
	r.lines = append(r.lines, level+" "+message)
	r.mu.Unlock()
}

// syncBuffer guards a bytes.Buffer against the monitor goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMonitor_EmitsSummaryLines(t *testing.T) {
	var buf syncBuffer
	log := logger.NewWithWriter(&buf, logger.LevelInfo)
	sink := &recordingSink{}
	pool := stubPool{stats: threadpool.Stats{Workers: 4, ReadyQueueLength: 1}}

	m := monitor.New(pool, metrics.NewMetrics(), log, sink, time.Second)
	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for m.Ticks() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Ticks() == 0 {
		t.Fatal("monitor never sampled")
	}

	if out := buf.String(); !strings.Contains(out, "workers: 4") {
		t.Errorf("summary line missing worker count; got:\n%s", out)
	}

	sink.mu.Lock()
	lines := len(sink.lines)
	sink.mu.Unlock()
	if lines == 0 {
		t.Error("sink received no log lines")
	}
}

func TestMonitor_StopEndsSampling(t *testing.T) {
	log := logger.NewWithWriter(&syncBuffer{}, logger.LevelError)
	m := monitor.New(stubPool{}, metrics.NewMetrics(), log, nil, time.Second)
	m.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for m.Ticks() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	m.Stop()
	before := m.Ticks()
	time.Sleep(1200 * time.Millisecond)
	if after := m.Ticks(); after > before+1 {
		t.Errorf("monitor kept sampling after Stop: %d -> %d", before, after)
	}
}

func TestMonitor_ContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.NewWithWriter(&syncBuffer{}, logger.LevelError)
	m := monitor.New(stubPool{}, metrics.NewMetrics(), log, nil, time.Second)
	m.Start(ctx)
	cancel()

	time.Sleep(50 * time.Millisecond)
	before := m.Ticks()
	time.Sleep(1200 * time.Millisecond)
	if after := m.Ticks(); after > before {
		t.Errorf("monitor kept sampling after context cancel: %d -> %d", before, after)
	}
}
