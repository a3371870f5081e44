package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors the executor, planner and
// housekeeping sweep publish to. Grounded on the pack's promauto-based
// metrics packages: module-level vars registered once against the
// default registry, exposed on /metrics by whichever binary wires
// promhttp.Handler().
var (
	TasksStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orcheo_tasks_started_total",
		Help: "Total number of task invocations started.",
	})

	TasksCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orcheo_tasks_completed_total",
		Help: "Total number of task invocations reaching a terminal status, by outcome.",
	}, []string{"outcome"})

	TaskRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orcheo_task_retries_total",
		Help: "Total number of transient-failure retries across all tasks.",
	})

	TaskDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orcheo_task_duration_seconds",
		Help:    "Task invocation wall-clock duration, from claim to terminal status.",
		Buckets: prometheus.DefBuckets,
	})

	ActionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orcheo_actions_in_flight",
		Help: "Number of actions with an active scheduling loop.",
	})

	PlannerRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orcheo_planner_retries_total",
		Help: "Total number of corrective re-prompts issued by the planner.",
	})

	PlannerFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orcheo_planner_fallbacks_total",
		Help: "Total number of plans that exhausted retries and fell back to a single generic task.",
	})
)
