// GoThreadPool is a priority worker thread pool engine for CPU-bound work.
//
// Startup sequence:
//  1. Load configuration (JSON or YAML file, or defaults).
//  2. Initialise logger and metrics.
//  3. Initialise the thread pool.
//  4. Start the dashboard HTTP server.
//  5. Start the scheduler, which cycles background jobs through the pool.
//  6. Start the monitor, which samples pool state in the background.
//  7. Submit a demonstration workload (a native group task and a scripted task).
//  8. Block until OS signals SIGINT or SIGTERM, then perform a clean shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/firasghr/GoThreadPool/callable"
	"github.com/firasghr/GoThreadPool/config"
	"github.com/firasghr/GoThreadPool/dashboard"
	"github.com/firasghr/GoThreadPool/logger"
	"github.com/firasghr/GoThreadPool/metrics"
	"github.com/firasghr/GoThreadPool/monitor"
	"github.com/firasghr/GoThreadPool/scheduler"
	"github.com/firasghr/GoThreadPool/threadpool"
)

func main() {
	// ── Flags ──────────────────────────────────────────────────────────────
	configFile := flag.String("config", "", "Path to a JSON or YAML config file (optional; uses defaults if omitted)")
	flag.Parse()

	// ── Configuration ──────────────────────────────────────────────────────
	var cfg *config.Config
	var err error
	switch {
	case *configFile == "":
		cfg = config.DefaultConfig()
	case strings.HasSuffix(*configFile, ".yaml"), strings.HasSuffix(*configFile, ".yml"):
		cfg, err = config.LoadYAMLConfig(*configFile)
	default:
		cfg, err = config.LoadConfig(*configFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// ── Logger ─────────────────────────────────────────────────────────────
	level, ok := logger.ParseLevel(cfg.LogLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", cfg.LogLevel)
		os.Exit(1)
	}
	log := logger.New(level)
	log.Info("GoThreadPool starting up")
	if *configFile != "" {
		log.Infof("configuration loaded from %q", *configFile)
	} else {
		log.Info("using default configuration")
	}

	// ── Metrics ────────────────────────────────────────────────────────────
	m := metrics.NewMetrics()

	// ── Thread pool ────────────────────────────────────────────────────────
	pool := threadpool.New(log, m)
	if err := pool.Init(cfg.ThreadCount, cfg.UseNativeLowPriorityThreads, cfg.LowPriorityRatio); err != nil {
		log.Errorf("pool init failed: %v", err)
		os.Exit(1)
	}
	log.Infof("thread pool started with %d workers", pool.ThreadCount())

	// ── Dashboard server ───────────────────────────────────────────────────
	var dash *dashboard.Server
	if cfg.DashboardAddr != "" {
		dash = dashboard.New(m, pool, cfg)
		go func() {
			if err := dash.ListenAndServe(cfg.DashboardAddr); err != nil {
				log.Errorf("dashboard server error: %v", err)
			}
		}()
		log.Infof("dashboard server starting on %s", cfg.DashboardAddr)
	}

	// ── Scheduler ──────────────────────────────────────────────────────────
	// Background maintenance jobs cycle through the pool as low-priority
	// tasks. Replace these with your application-specific jobs.
	jobs := []scheduler.Job{
		{Name: "gc-stats", Fn: func() {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			log.Debugf("heap in use: %d MiB", ms.HeapInuse/1024/1024)
		}},
	}
	sc := scheduler.NewScheduler(pool, cfg.MonitorInterval, jobs)
	sc.Start()
	log.Info("scheduler started")

	// ── Monitor ────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var sink monitor.LogSink
	if dash != nil {
		sink = dash
	}
	mon := monitor.New(pool, m, log, sink, cfg.MonitorInterval)
	mon.Start(ctx)

	// ── Demonstration workload ─────────────────────────────────────────────
	// A high-priority native group task fanned out over all workers, and a
	// scripted low-priority task running inside an otto VM.
	squares := make([]int, 1000)
	gid, err := pool.AddNativeGroupTask(func(_ any, index int) {
		squares[index] = index * index
	}, nil, len(squares), -1, true, "square table")
	if err != nil {
		log.Errorf("group submission failed: %v", err)
	} else if err := pool.WaitForGroupTaskCompletion(gid); err != nil {
		log.Errorf("group wait failed: %v", err)
	} else {
		log.Infof("square table computed (%d entries)", len(squares))
	}

	script, err := callable.Compile(`
var greeted = false;
function greet() { greeted = true; return "hello from otto"; }
`, "greet")
	if err != nil {
		log.Errorf("script compile failed: %v", err)
	} else {
		id := pool.AddTask(script, false, "greet script")
		if err := pool.WaitForTaskCompletion(id); err != nil {
			log.Errorf("script wait failed: %v", err)
		} else if out, err := script.Eval("greeted"); err == nil {
			log.Infof("script task ran (greeted=%s)", out)
		}
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Println() // newline after ^C
	log.Infof("received signal %s; shutting down", sig)
	if dash != nil {
		dash.AddLog("INFO", fmt.Sprintf("received signal %s; shutting down", sig))
	}

	// Stop submitting new cycles, then drain the workers.
	sc.Stop()
	mon.Stop()
	pool.Finish()

	snap := m.Snapshot()
	log.Infof("final metrics – tasks: %d/%d | groups: %d/%d | deferred: %d | promoted: %d | script errors: %d",
		snap.TasksCompleted, snap.TasksSubmitted,
		snap.GroupsCompleted, snap.GroupsSubmitted,
		snap.BacklogDeferred, snap.BacklogPromoted, snap.ScriptErrors)
	log.Info("GoThreadPool shut down cleanly")
}
