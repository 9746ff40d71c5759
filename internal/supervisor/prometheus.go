package supervisor

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"panelctl/internal/launcher"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	stateTransitions *prometheus.CounterVec
	startupDuration  *prometheus.HistogramVec
	startupFailures  *prometheus.CounterVec
	shutdownDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector with its own registry.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "panelctl"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of supervisor state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	// Startup can legitimately take up to a minute
	pmc.startupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "startup_duration_seconds",
			Help:      "Duration of backend start attempts",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60, 120},
		},
		[]string{"strategy", "signal", "status"},
	)

	pmc.startupFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "startup_failures_total",
			Help:      "Total number of failed backend start attempts",
		},
		[]string{"reason"},
	)

	pmc.shutdownDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shutdown_duration_seconds",
			Help:      "Duration of backend shutdowns",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"forced"},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.startupDuration,
		pmc.startupFailures,
		pmc.shutdownDuration,
	)

	return pmc
}

// StateTransition records a state transition
func (pmc *PrometheusMetricsCollector) StateTransition(from, to State) {
	pmc.stateTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// StartupDuration records the duration of a start attempt
func (pmc *PrometheusMetricsCollector) StartupDuration(strategy launcher.StrategyName, signal launcher.SignalKind, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if signal == "" {
		signal = "none"
	}
	pmc.startupDuration.WithLabelValues(string(strategy), string(signal), status).Observe(duration.Seconds())
}

// StartupFailure records a failed start attempt
func (pmc *PrometheusMetricsCollector) StartupFailure(reason launcher.Reason) {
	pmc.startupFailures.WithLabelValues(string(reason)).Inc()
}

// ShutdownDuration records the duration of a stop
func (pmc *PrometheusMetricsCollector) ShutdownDuration(forced bool, duration time.Duration) {
	pmc.shutdownDuration.WithLabelValues(strconv.FormatBool(forced)).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Compile-time interface compliance check
var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
