// Package monitor samples pool state on a fixed interval.
//
// The monitor is the host's always-on view of the pool: every interval it
// snapshots the metrics counters and the pool's queue state, emits one
// Info summary line, and (when a dashboard is attached) mirrors the line
// into the dashboard's log stream. It exists so that operators get a
// heartbeat in the logs even when nothing is scraping /metrics.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/firasghr/GoThreadPool/logger"
	"github.com/firasghr/GoThreadPool/metrics"
	"github.com/firasghr/GoThreadPool/threadpool"
)

// LogSink receives the monitor's summary lines in addition to the logger.
// *dashboard.Server satisfies it.
type LogSink interface {
	AddLog(level, message string)
}

// StatsSource is the narrow view of the pool the monitor needs.
type StatsSource interface {
	Stats() threadpool.Stats
}

// Monitor periodically samples metrics and pool stats.
type Monitor struct {
	pool StatsSource
	met  *metrics.Metrics
	log  *logger.Logger
	sink LogSink

	interval time.Duration
	stopCh   chan struct{}
	once     sync.Once

	// ticks is incremented on every completed sample. Tests poll it.
	ticks atomic.Int64
}

// New creates a Monitor. sink may be nil; interval values below one
// second are raised to one second so a misconfigured host cannot spin.
func New(pool StatsSource, met *metrics.Metrics, log *logger.Logger, sink LogSink, interval time.Duration) *Monitor {
	if interval < time.Second {
		interval = time.Second
	}
	return &Monitor{
		pool:     pool,
		met:      met,
		log:      log,
		sink:     sink,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background sampling goroutine.  It is idempotent:
// calling Start more than once is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.once.Do(func() {
		go m.loop(ctx)
	})
}

// Stop signals the background goroutine to exit.  Idempotent.
func (m *Monitor) Stop() {
	m.once.Do(func() {}) // ensure once is consumed even if Start was never called
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
}

// Ticks returns how many samples have completed since Start.
func (m *Monitor) Ticks() int64 { return m.ticks.Load() }

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample emits one summary line from a consistent-enough snapshot.
func (m *Monitor) sample() {
	snap := m.met.Snapshot()
	stats := m.pool.Stats()

	line := fmt.Sprintf("pool – workers: %d | ready: %d | backlog: %d | low-prio in use: %d/%d | tasks: %d/%d | groups: %d/%d | tps: %.1f",
		stats.Workers, stats.ReadyQueueLength, stats.LowPriorityBacklogLength,
		stats.LowPriorityThreadsUsed, stats.MaxLowPriorityThreads,
		snap.TasksCompleted, snap.TasksSubmitted,
		snap.GroupsCompleted, snap.GroupsSubmitted,
		m.met.TasksPerSecond())

	m.log.Info(line)
	if m.sink != nil {
		m.sink.AddLog("INFO", line)
	}
	m.ticks.Add(1)
}
