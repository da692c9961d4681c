// Package metrics exposes the engine's Prometheus surface (C13, spec.md
// §4.12): a handful of gauges and counters describing fleet health,
// specialist queue depth, patrol cycle latency, and lock contention.
//
// Grounded on cuemby-warren's pkg/metrics/metrics.go: package-level
// collectors registered once in init, a Handler wrapping promhttp, and a
// Collector that refreshes the gauges on a ticker rather than on every
// scrape.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AgentsTotal counts agents by their last-classified health status
	// (spec.md §4.4's closed set: hidden, dead, suspended, stuck, warning,
	// stale, active).
	AgentsTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "panopticon_agents_total",
		Help: "Number of agents currently classified at each health status.",
	}, []string{"health"})

	// SpecialistQueueDepth is the pending work-item count per specialist.
	SpecialistQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "panopticon_specialist_queue_depth",
		Help: "Number of work items queued for a specialist.",
	}, []string{"name"})

	// SpecialistState is 1 for the specialist's current runtime state and
	// 0 for the others, letting a single PromQL query chart state over
	// time (idle/active/suspended).
	SpecialistState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "panopticon_specialist_state",
		Help: "1 if the specialist is currently in this runtime state (idle, active, suspended), else 0.",
	}, []string{"name", "state"})

	// PatrolCycleDuration observes wall-clock time for one full patrol
	// Tick (classify + drain queues + expire stale items + recover
	// timed-out journal operations).
	PatrolCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "panopticon_patrol_cycle_duration_seconds",
		Help:    "Duration of one patrol loop tick.",
		Buckets: prometheus.DefBuckets,
	})

	// PipelineAutoRequeueTotal counts auto-requeues of review-agent after
	// a test failure (spec.md I5), per issue, so an issue bouncing near
	// the circuit breaker is visible before it trips.
	PipelineAutoRequeueTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "panopticon_pipeline_auto_requeue_total",
		Help: "Count of automatic review-agent requeues triggered by test failures, per issue.",
	}, []string{"issue"})

	// GlobalLockHeld is 1 while the Global Mutation Lock (C8) is held by
	// any operation, 0 while free.
	GlobalLockHeld = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "panopticon_global_lock_held",
		Help: "1 if the global mutation lock is currently held, else 0.",
	})
)

func init() {
	prometheus.MustRegister(
		AgentsTotal,
		SpecialistQueueDepth,
		SpecialistState,
		PatrolCycleDuration,
		PipelineAutoRequeueTotal,
		GlobalLockHeld,
	)
}

// Handler serves the registered collectors in the Prometheus exposition
// format, mounted by pkg/api at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
