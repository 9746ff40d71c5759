package supervisor

import "panelctl/internal/reporting"

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLocator replaces the interpreter locator
func WithLocator(l Locator) Option {
	return func(s *Supervisor) {
		s.locator = l
	}
}

// WithInstaller replaces the dependency installer
func WithInstaller(i Installer) Option {
	return func(s *Supervisor) {
		s.installer = i
	}
}

// WithLauncher replaces the process launcher
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		s.launcher = l
	}
}

// WithEventBus publishes lifecycle events to bus
func WithEventBus(bus reporting.EventBus) Option {
	return func(s *Supervisor) {
		s.bus = bus
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Supervisor) {
		s.metrics = collector
	}
}
