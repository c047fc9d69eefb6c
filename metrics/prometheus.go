package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a Metrics instance to a Prometheus registry. It
// mirrors the atomic counters as const metrics at scrape time, so the hot
// path keeps its plain atomic increments and pays nothing for the export.
//
// Register it on a private registry and serve that registry from the
// dashboard's /metrics endpoint:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector(m))
type Collector struct {
	m *Metrics

	tasksSubmitted   *prometheus.Desc
	tasksCompleted   *prometheus.Desc
	groupsSubmitted  *prometheus.Desc
	groupsCompleted  *prometheus.Desc
	backlogDeferred  *prometheus.Desc
	backlogPromoted  *prometheus.Desc
	dedicatedThreads *prometheus.Desc
	scriptErrors     *prometheus.Desc
}

// NewCollector creates a Collector over m.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		m: m,
		tasksSubmitted: prometheus.NewDesc("threadpool_tasks_submitted_total",
			"Total number of single tasks submitted to the pool", nil, nil),
		tasksCompleted: prometheus.NewDesc("threadpool_tasks_completed_total",
			"Total number of single tasks that finished executing", nil, nil),
		groupsSubmitted: prometheus.NewDesc("threadpool_groups_submitted_total",
			"Total number of group tasks submitted to the pool", nil, nil),
		groupsCompleted: prometheus.NewDesc("threadpool_groups_completed_total",
			"Total number of groups whose index range was fully processed", nil, nil),
		backlogDeferred: prometheus.NewDesc("threadpool_backlog_deferred_total",
			"Total number of low-priority tasks parked on the backlog", nil, nil),
		backlogPromoted: prometheus.NewDesc("threadpool_backlog_promoted_total",
			"Total number of backlog tasks promoted into the ready queue", nil, nil),
		dedicatedThreads: prometheus.NewDesc("threadpool_dedicated_threads_total",
			"Total number of dedicated low-priority threads spawned", nil, nil),
		scriptErrors: prometheus.NewDesc("threadpool_script_errors_total",
			"Total number of callable invocations that reported an error", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasksSubmitted
	ch <- c.tasksCompleted
	ch <- c.groupsSubmitted
	ch <- c.groupsCompleted
	ch <- c.backlogDeferred
	ch <- c.backlogPromoted
	ch <- c.dedicatedThreads
	ch <- c.scriptErrors
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.tasksSubmitted, prometheus.CounterValue, float64(snap.TasksSubmitted))
	ch <- prometheus.MustNewConstMetric(c.tasksCompleted, prometheus.CounterValue, float64(snap.TasksCompleted))
	ch <- prometheus.MustNewConstMetric(c.groupsSubmitted, prometheus.CounterValue, float64(snap.GroupsSubmitted))
	ch <- prometheus.MustNewConstMetric(c.groupsCompleted, prometheus.CounterValue, float64(snap.GroupsCompleted))
	ch <- prometheus.MustNewConstMetric(c.backlogDeferred, prometheus.CounterValue, float64(snap.BacklogDeferred))
	ch <- prometheus.MustNewConstMetric(c.backlogPromoted, prometheus.CounterValue, float64(snap.BacklogPromoted))
	ch <- prometheus.MustNewConstMetric(c.dedicatedThreads, prometheus.CounterValue, float64(snap.DedicatedThreads))
	ch <- prometheus.MustNewConstMetric(c.scriptErrors, prometheus.CounterValue, float64(snap.ScriptErrors))
}
