// Package metrics exports taskforge run metrics in Prometheus format.
// Grounded on 88lin-divinesense's ai/metrics.PrometheusExporter: a
// *prometheus.Registry wrapped with typed Vec fields and record/get
// accessor methods, re-pointed at the scheduler/agent/vcs domain instead
// of chat/tool/cache metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry exports per-run scheduler, agent, and vcs metrics.
type Registry struct {
	registry *prometheus.Registry

	tasksTotal      *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec
	tasksActive      prometheus.Gauge
	agentFailures    *prometheus.CounterVec
	agentRetries     prometheus.Counter
	scopeViolations  *prometheus.CounterVec
	stackConflicts   prometheus.Counter
}

// Config configures the metrics Registry.
type Config struct {
	Registry       *prometheus.Registry
	DurationBuckets []float64
}

// DefaultConfig returns the default histogram bucket layout, tuned for
// per-task agent durations (seconds) rather than chat-latency durations.
func DefaultConfig() Config {
	return Config{DurationBuckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200}}
}

// New builds a Registry and registers its collectors.
func New(cfg Config) *Registry {
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultConfig().DurationBuckets
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Registry{registry: reg}

	r.tasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskforge",
		Subsystem: "scheduler",
		Name:      "tasks_total",
		Help:      "Total number of tasks that reached a terminal state, by final state.",
	}, []string{"state"})

	r.taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskforge",
		Subsystem: "agent",
		Name:      "task_duration_seconds",
		Help:      "Wall-clock duration of a task's agent execution.",
		Buckets:   cfg.DurationBuckets,
	}, []string{"task_id"})

	r.tasksActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "taskforge",
		Subsystem: "scheduler",
		Name:      "tasks_active",
		Help:      "Number of tasks currently running or queued.",
	})

	r.agentFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskforge",
		Subsystem: "agent",
		Name:      "failures_total",
		Help:      "Total agent execution failures, by kind.",
	}, []string{"kind"})

	r.agentRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "taskforge",
		Subsystem: "scheduler",
		Name:      "retries_total",
		Help:      "Total number of task retries across the run.",
	})

	r.scopeViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskforge",
		Subsystem: "scope",
		Name:      "violations_total",
		Help:      "Total FileScopeGuard violations, by kind.",
	}, []string{"kind"})

	r.stackConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "taskforge",
		Subsystem: "stack",
		Name:      "conflicts_total",
		Help:      "Total cherry-pick conflicts encountered during finalize.",
	})

	reg.MustRegister(
		r.tasksTotal, r.taskDuration, r.tasksActive, r.agentFailures,
		r.agentRetries, r.scopeViolations, r.stackConflicts,
	)
	return r
}

// RecordTaskTerminal increments the terminal-state counter for state.
func (r *Registry) RecordTaskTerminal(state string) {
	r.tasksTotal.WithLabelValues(state).Inc()
}

// RecordTaskDuration observes how long taskID's agent execution took.
func (r *Registry) RecordTaskDuration(taskID string, d time.Duration) {
	r.taskDuration.WithLabelValues(taskID).Observe(d.Seconds())
}

// SetActiveTasks sets the current queued+running gauge.
func (r *Registry) SetActiveTasks(n int) {
	r.tasksActive.Set(float64(n))
}

// RecordAgentFailure increments the agent-failure counter for kind.
func (r *Registry) RecordAgentFailure(kind string) {
	r.agentFailures.WithLabelValues(kind).Inc()
}

// RecordRetry increments the total-retries counter.
func (r *Registry) RecordRetry() {
	r.agentRetries.Inc()
}

// RecordScopeViolation increments the scope-violation counter for kind.
func (r *Registry) RecordScopeViolation(kind string) {
	r.scopeViolations.WithLabelValues(kind).Inc()
}

// RecordStackConflict increments the stack-conflict counter.
func (r *Registry) RecordStackConflict() {
	r.stackConflicts.Inc()
}

// Handler returns the HTTP handler serving this registry in Prometheus
// exposition format; tforge run does not start an HTTP server for it.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
