// Package metrics exposes the service's Prometheus instrumentation. All
// collectors are registered via promauto at init and served on the API
// router's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasguard_readings_processed_total",
		Help: "Readings accepted by the core, by zone",
	}, []string{"zone"})

	ReadingsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasguard_readings_rejected_total",
		Help: "Readings rejected at validation before any state mutation",
	})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasguard_classifications_total",
		Help: "Fused classifications by final risk level",
	}, []string{"level"})

	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasguard_alerts_created_total",
		Help: "Alerts handed to the alert sink, by severity",
	}, []string{"severity"})

	EmissionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasguard_emission_failures_total",
		Help: "Collaborator emission failures, by sink",
	}, []string{"sink"})

	PredictorUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gasguard_predictor_unavailable_total",
		Help: "Readings classified in degraded threshold-only mode",
	})

	PredictorLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gasguard_predictor_latency_seconds",
		Help:    "Latency of next-step predictions",
		Buckets: prometheus.DefBuckets,
	})

	VentilationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gasguard_ventilation_transitions_total",
		Help: "Ventilation mode transitions, by target mode",
	}, []string{"mode"})
)
