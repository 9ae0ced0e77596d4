// Package telemetry exposes the Prometheus metrics recorded by the
// resilience engine and the fallback catalog.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes recorded on ResilientCalls.
const (
	OutcomeSuccess  = "success"
	OutcomeCache    = "cache"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

var (
	// ResilientCalls counts protected calls by service and final outcome.
	ResilientCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylebot_resilient_calls_total",
		Help: "Protected external calls by service and outcome.",
	}, []string{"service", "outcome"})

	// CallAttempts records how many attempts each protected call used.
	CallAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stylebot_resilient_call_attempts",
		Help:    "Attempts used per protected call.",
		Buckets: []float64{1, 2, 3, 4, 5},
	}, []string{"service"})

	// CircuitState tracks breaker state per service
	// (0=closed, 1=open, 2=half-open).
	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stylebot_circuit_state",
		Help: "Circuit breaker state per service (0=closed, 1=open, 2=half-open).",
	}, []string{"service"})

	// Fallbacks counts catalog messages served by kind.
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylebot_fallbacks_total",
		Help: "Fallback responses served by kind.",
	}, []string{"kind"})
)

// RecordCall tallies one finished protected call.
func RecordCall(service, outcome string, attempts int) {
	ResilientCalls.WithLabelValues(service, outcome).Inc()
	if attempts > 0 {
		CallAttempts.WithLabelValues(service).Observe(float64(attempts))
	}
}

// RecordCircuitState updates the breaker gauge for a service.
func RecordCircuitState(service string, state int) {
	CircuitState.WithLabelValues(service).Set(float64(state))
}

// RecordFallback tallies one served fallback message.
func RecordFallback(kind string) {
	Fallbacks.WithLabelValues(kind).Inc()
}
