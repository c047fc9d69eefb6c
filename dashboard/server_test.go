package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firasghr/GoThreadPool/config"
	"github.com/firasghr/GoThreadPool/dashboard"
	"github.com/firasghr/GoThreadPool/metrics"
	"github.com/firasghr/GoThreadPool/threadpool"
)

// stubPool feeds canned stats to the server without running workers.
type stubPool struct{ stats threadpool.Stats }

func (s stubPool) Stats() threadpool.Stats { return s.stats }

func newServer() (*dashboard.Server, *metrics.Metrics) {
	m := metrics.NewMetrics()
	pool := stubPool{stats: threadpool.Stats{
		Workers:                  4,
		ReadyQueueLength:         2,
		LowPriorityBacklogLength: 1,
		MaxLowPriorityThreads:    1,
	}}
	return dashboard.New(m, pool, config.DefaultConfig()), m
}

func TestStatsEndpoint(t *testing.T) {
	srv, m := newServer()
	m.IncrementTasksSubmitted()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap dashboard.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Pool.Workers != 4 {
		t.Errorf("pool workers = %d, want 4", snap.Pool.Workers)
	}
	if snap.Counters.TasksSubmitted != 1 {
		t.Errorf("tasks submitted = %d, want 1", snap.Counters.TasksSubmitted)
	}
}

func TestStatsEndpoint_MethodNotAllowed(t *testing.T) {
	srv, _ := newServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stats", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestConfigEndpoint(t *testing.T) {
	srv, _ := newServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var cfg config.Config
	if err := json.NewDecoder(rec.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.LowPriorityRatio != config.DefaultConfig().LowPriorityRatio {
		t.Errorf("config round-trip lost LowPriorityRatio: %v", cfg.LowPriorityRatio)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	srv, m := newServer()
	m.IncrementGroupsSubmitted()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "threadpool_groups_submitted_total 1") {
		t.Errorf("exposition missing groups counter; got:\n%s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/stats", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing on preflight response")
	}
}
