// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventhub"

// Admission outcomes.
const (
	OutcomeAdmitted    = "admitted"
	OutcomeUnchanged   = "unchanged"
	OutcomeFull        = "full"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Registry is the registry served by the metrics endpoint.
var Registry = prometheus.NewRegistry()

var (
	// AdmissionsTotal counts attempts to move an actor into confirmed.
	AdmissionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Attempts to confirm attendance, by outcome",
		},
		[]string{"outcome"},
	)

	AdmissionDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Time spent in the attendance ledger per status change",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// AttendanceTransitionsTotal counts committed status changes by target status.
	AttendanceTransitionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_transitions_total",
			Help:      "Committed attendance status changes",
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}
