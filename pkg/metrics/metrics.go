package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog metrics
	FilesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "librarian_files_total",
			Help: "Total number of cataloged files",
		},
	)

	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "librarian_instances_total",
			Help: "Total number of file instances by store",
		},
		[]string{"store"},
	)

	ObservationsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "librarian_observations_total",
			Help: "Total number of observations",
		},
	)

	SessionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "librarian_sessions_total",
			Help: "Total number of observing sessions",
		},
	)

	StandingOrdersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "librarian_standing_orders_total",
			Help: "Total number of configured standing orders",
		},
	)

	// Store metrics
	StoreAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "librarian_store_available",
			Help: "Whether a store is available (1) or not (0)",
		},
		[]string{"store"},
	)

	StoreFreeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "librarian_store_free_bytes",
			Help: "Cached free-byte reading per store",
		},
		[]string{"store"},
	)

	// Task manager metrics
	TasksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "librarian_tasks_in_flight",
			Help: "Number of tasks currently submitted or running",
		},
	)

	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librarian_tasks_total",
			Help: "Total number of tasks completed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	TaskWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "librarian_task_wait_seconds",
			Help:    "Time a task spent queued before a worker picked it up",
			Buckets: prometheus.DefBuckets,
		},
	)

	TaskRuntimeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "librarian_task_runtime_seconds",
			Help:    "Time a task's work() body took to run, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Replication metrics
	StandingOrderEvaluations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "librarian_standing_order_evaluations_total",
			Help: "Total number of standing-order evaluation passes that actually ran",
		},
	)

	CopiesLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librarian_copies_launched_total",
			Help: "Total number of UploadTasks launched, by standing order name (empty for manual copies)",
		},
		[]string{"order"},
	)

	CopiesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librarian_copies_finished_total",
			Help: "Total number of UploadTasks that finished, by outcome",
		},
		[]string{"outcome"},
	)

	// RPC metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librarian_rpc_requests_total",
			Help: "Total number of RPC requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "librarian_rpc_request_duration_seconds",
			Help:    "RPC request handling duration in seconds, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Search metrics
	SearchCompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "librarian_search_compile_duration_seconds",
			Help:    "Time taken to compile and run a search, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Offload/staging metrics
	OffloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librarian_offloads_total",
			Help: "Total number of offload operations by outcome",
		},
		[]string{"outcome"},
	)

	StagingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "librarian_staging_requests_total",
			Help: "Total number of staging requests by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(FilesTotal)
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(ObservationsTotal)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(StandingOrdersTotal)

	prometheus.MustRegister(StoreAvailable)
	prometheus.MustRegister(StoreFreeBytes)

	prometheus.MustRegister(TasksInFlight)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TaskWaitDuration)
	prometheus.MustRegister(TaskRuntimeDuration)

	prometheus.MustRegister(StandingOrderEvaluations)
	prometheus.MustRegister(CopiesLaunched)
	prometheus.MustRegister(CopiesFinished)

	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)

	prometheus.MustRegister(SearchCompileDuration)

	prometheus.MustRegister(OffloadsTotal)
	prometheus.MustRegister(StagingRequestsTotal)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing an operation and reporting it into a
// histogram when done.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
