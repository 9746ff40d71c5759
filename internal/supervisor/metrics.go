package supervisor

import (
	"time"

	"panelctl/internal/launcher"
)

// MetricsCollector defines the interface for collecting supervisor metrics
type MetricsCollector interface {
	// StateTransition records a lifecycle state change
	StateTransition(from, to State)

	// StartupDuration records how long a start attempt took and how it was decided
	StartupDuration(strategy launcher.StrategyName, signal launcher.SignalKind, duration time.Duration, err error)

	// StartupFailure records a failed start attempt by reason
	StartupFailure(reason launcher.Reason)

	// ShutdownDuration records how long a stop took
	ShutdownDuration(forced bool, duration time.Duration)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) StateTransition(from, to State) {}
func (n *noopMetricsCollector) StartupDuration(strategy launcher.StrategyName, signal launcher.SignalKind, duration time.Duration, err error) {
}
func (n *noopMetricsCollector) StartupFailure(reason launcher.Reason)                 {}
func (n *noopMetricsCollector) ShutdownDuration(forced bool, duration time.Duration) {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
