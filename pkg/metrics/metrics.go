package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	JobsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rendergrid_jobs_scheduled_total",
			Help: "Total number of jobs assigned to nodes",
		},
	)

	JobsPreempted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rendergrid_jobs_preempted_total",
			Help: "Total number of running jobs preempted by pending jobs",
		},
	)

	PriorityEscalations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rendergrid_priority_escalations_total",
			Help: "Total number of job priority escalations by the priority engine",
		},
	)

	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rendergrid_scheduling_latency_seconds",
			Help:    "Time taken for a full scheduling pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reservation metrics
	ConflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendergrid_conflicts_detected_total",
			Help: "Total number of detected conflicts by type",
		},
		[]string{"type"},
	)

	ConflictsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendergrid_conflicts_resolved_total",
			Help: "Total number of resolved conflicts by strategy",
		},
		[]string{"strategy"},
	)

	ReservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rendergrid_reservations_created_total",
			Help: "Total number of reservations accepted by the manager",
		},
	)

	ReservationsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rendergrid_reservations",
			Help: "Current number of reservations by status",
		},
		[]string{"status"},
	)

	// Instrumentation metrics
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rendergrid_operation_duration_seconds",
			Help:    "Duration of core operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(JobsScheduled)
	prometheus.MustRegister(JobsPreempted)
	prometheus.MustRegister(PriorityEscalations)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(ConflictsDetected)
	prometheus.MustRegister(ConflictsResolved)
	prometheus.MustRegister(ReservationsCreated)
	prometheus.MustRegister(ReservationsByStatus)
	prometheus.MustRegister(OperationDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
