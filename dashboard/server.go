// Package dashboard provides a real-time HTTP introspection server for
// GoThreadPool.
//
// It exposes:
//   - GET /api/metrics/stream – SSE stream of live counters and pool stats (100 ms ticks)
//   - GET /api/logs/stream    – SSE stream of log entries
//   - GET /api/stats          – point-in-time pool stats (JSON)
//   - GET /api/config         – effective host configuration (JSON)
//   - GET /metrics            – Prometheus exposition of the pool counters
//
// All SSE endpoints set appropriate headers so browsers can use EventSource
// without any additional libraries.  CORS is wide-open so a frontend dev
// server can reach the Go backend directly.
package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firasghr/GoThreadPool/config"
	"github.com/firasghr/GoThreadPool/metrics"
	"github.com/firasghr/GoThreadPool/threadpool"
)

// ─── Data types ───────────────────────────────────────────────────────────────

// StatsSource is the narrow view of the pool the dashboard needs.
type StatsSource interface {
	Stats() threadpool.Stats
}

// Snapshot is the JSON payload pushed to dashboard clients every tick.
type Snapshot struct {
	Timestamp      int64            `json:"timestamp"`
	Counters       metrics.Snapshot `json:"counters"`
	TasksPerSecond float64          `json:"tasks_per_second"`
	Pool           threadpool.Stats `json:"pool"`
}

// LogEntry is a structured log line streamed to the dashboard.
type LogEntry struct {
	Timestamp int64  `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// ─── Server ───────────────────────────────────────────────────────────────────

// Server provides the HTTP endpoints consumed by operators and scrapers.
type Server struct {
	metrics *metrics.Metrics
	pool    StatsSource
	cfg     *config.Config

	registry *prometheus.Registry

	// Log ring buffer (capped at maxLogs).
	logMu    sync.Mutex
	logs     []LogEntry
	logSubs  map[chan LogEntry]struct{}
	logSubMu sync.Mutex

	// Snapshot SSE subscribers.
	snapSubs  map[chan Snapshot]struct{}
	snapSubMu sync.Mutex

	mux *http.ServeMux
}

const maxLogs = 10_000

// New creates a dashboard Server backed by the given metrics, pool and
// config. The pool counters are registered on a private Prometheus
// registry served at /metrics. Call ListenAndServe to start accepting
// connections.
func New(m *metrics.Metrics, pool StatsSource, cfg *config.Config) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(m))

	s := &Server{
		metrics:  m,
		pool:     pool,
		cfg:      cfg,
		registry: reg,
		logs:     make([]LogEntry, 0, 512),
		logSubs:  make(map[chan LogEntry]struct{}),
		snapSubs: make(map[chan Snapshot]struct{}),
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// AddLog appends a structured log entry to the ring buffer and fans it out to
// every active SSE /api/logs/stream subscriber.
func (s *Server) AddLog(level, message string) {
	entry := LogEntry{
		Timestamp: time.Now().UnixMilli(),
		Level:     level,
		Message:   message,
	}

	s.logMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
	s.logMu.Unlock()

	s.logSubMu.Lock()
	for ch := range s.logSubs {
		select {
		case ch <- entry:
		default:
			// Slow subscriber, drop rather than block.
		}
	}
	s.logSubMu.Unlock()
}

// ListenAndServe starts the HTTP server on addr (e.g. ":8080") and blocks
// until the server stops, returning the error that stopped it.  It also starts the background goroutine that
// ticks snapshots to SSE subscribers every 100 ms.
//
// Timeouts are intentionally generous for a local dashboard: SSE and log
// streams are long-lived connections that must not be cut off by short
// write deadlines.  Operators exposing the dashboard on a public interface
// should wrap this in a reverse proxy with appropriate rate limiting.
func (s *Server) ListenAndServe(addr string) error {
	go s.snapshotTicker()
	log.Printf("dashboard: listening on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disabled – SSE/log streams are unbounded
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe() // #nosec G114 – replaced with explicit http.Server
}

// Handler returns the server's routing mux. Tests drive it through
// httptest without opening a socket.
func (s *Server) Handler() http.Handler { return s.mux }

// ─── Route registration ───────────────────────────────────────────────────────

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/metrics/stream", s.withCORS(s.handleSnapshotStream))
	s.mux.HandleFunc("/api/logs/stream", s.withCORS(s.handleLogsStream))
	s.mux.HandleFunc("/api/stats", s.withCORS(s.handleStats))
	s.mux.HandleFunc("/api/config", s.withCORS(s.handleConfig))
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// ─── CORS middleware ──────────────────────────────────────────────────────────

func (s *Server) withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

// ─── /api/metrics/stream ─────────────────────────────────────────────────────

func (s *Server) snapshotTicker() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		snap := s.snapshot()
		s.snapSubMu.Lock()
		for ch := range s.snapSubs {
			select {
			case ch <- snap:
			default:
			}
		}
		s.snapSubMu.Unlock()
	}
}

func (s *Server) snapshot() Snapshot {
	return Snapshot{
		Timestamp:      time.Now().UnixMilli(),
		Counters:       s.metrics.Snapshot(),
		TasksPerSecond: s.metrics.TasksPerSecond(),
		Pool:           s.pool.Stats(),
	}
}

func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Snapshot, 16)
	s.snapSubMu.Lock()
	s.snapSubs[ch] = struct{}{}
	s.snapSubMu.Unlock()

	defer func() {
		s.snapSubMu.Lock()
		delete(s.snapSubs, ch)
		s.snapSubMu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			if err := sseWrite(w, snap); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ─── /api/logs/stream ────────────────────────────────────────────────────────

func (s *Server) handleLogsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send buffered history first.
	s.logMu.Lock()
	history := make([]LogEntry, len(s.logs))
	copy(history, s.logs)
	s.logMu.Unlock()

	for _, entry := range history {
		if err := sseWrite(w, entry); err != nil {
			return
		}
	}
	flusher.Flush()

	ch := make(chan LogEntry, 256)
	s.logSubMu.Lock()
	s.logSubs[ch] = struct{}{}
	s.logSubMu.Unlock()

	defer func() {
		s.logSubMu.Lock()
		delete(s.logSubs, ch)
		s.logSubMu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-ch:
			if err := sseWrite(w, entry); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func sseWrite(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// ─── /api/stats ──────────────────────────────────────────────────────────────

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		log.Printf("dashboard: encode stats: %v", err)
	}
}

// ─── /api/config ─────────────────────────────────────────────────────────────

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.cfg); err != nil {
		log.Printf("dashboard: encode config: %v", err)
	}
}
