package config

import (
	"fmt"
	"strconv"
	"time"
)

// NetworkExposure controls which interfaces the worker program binds to.
type NetworkExposure string

const (
	ExposureLocalOnly    NetworkExposure = "local-only"
	ExposureLocalNetwork NetworkExposure = "local-network"
	ExposurePublic       NetworkExposure = "public"
)

const (
	loopbackHost = "127.0.0.1"
	wildcardHost = "0.0.0.0"
)

// Valid reports whether e is one of the known exposure modes.
func (e NetworkExposure) Valid() bool {
	switch e {
	case ExposureLocalOnly, ExposureLocalNetwork, ExposurePublic:
		return true
	}
	return false
}

// SupervisorConfig is the top-level configuration consumed by the supervisor.
// It is loaded once and treated as read-only afterwards.
type SupervisorConfig struct {
	WorkingDirectory  string          `yaml:"workingDirectory"`            // Worker program directory, also the runtime search path
	DataDirectory     string          `yaml:"dataDirectory"`               // Where the worker keeps its data
	FrontendAssetPath string          `yaml:"frontendAssetPath,omitempty"` // Built frontend served by the worker
	ResourcesPath     string          `yaml:"resourcesPath,omitempty"`     // Root searched for a bundled interpreter
	Autostart         *bool           `yaml:"autostart,omitempty"`
	NetworkExposure   NetworkExposure `yaml:"networkExposure"`
	Port              int             `yaml:"port"`

	Interpreter InterpreterConfig `yaml:"interpreter"`
	Worker      WorkerConfig      `yaml:"worker"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
}

// InterpreterConfig tunes the interpreter search.
type InterpreterConfig struct {
	Path       string `yaml:"path,omitempty"`       // Optional explicit interpreter, tried before anything else
	MinVersion string `yaml:"minVersion,omitempty"` // Minimum accepted version within the required major, e.g. "3.8"
}

// WorkerConfig describes how the worker program is invoked.
type WorkerConfig struct {
	ModuleRunner        string `yaml:"moduleRunner,omitempty"` // e.g. "uvicorn"
	AppTarget           string `yaml:"appTarget,omitempty"`    // e.g. "main:app"
	Entrypoint          string `yaml:"entrypoint,omitempty"`   // e.g. "main.py", used by the fallback strategy
	Manifest            string `yaml:"manifest,omitempty"`     // Dependency manifest relative to WorkingDirectory
	InstallDependencies *bool  `yaml:"installDependencies,omitempty"`
}

// ShouldAutostart reports whether an embedding shell starts the backend on launch.
func (c SupervisorConfig) ShouldAutostart() bool {
	return c.Autostart != nil && *c.Autostart
}

// ShouldInstallDependencies reports whether the dependency installer runs at all.
func (w WorkerConfig) ShouldInstallDependencies() bool {
	return w.InstallDependencies == nil || *w.InstallDependencies
}

// TimeoutConfig groups every bounded wait used during the lifecycle.
type TimeoutConfig struct {
	VersionProbe    time.Duration `yaml:"versionProbe,omitempty"`
	Install         time.Duration `yaml:"install,omitempty"`
	Startup         time.Duration `yaml:"startup,omitempty"`
	FallbackStartup time.Duration `yaml:"fallbackStartup,omitempty"`
	ProbeInterval   time.Duration `yaml:"probeInterval,omitempty"`
	ProbeRequest    time.Duration `yaml:"probeRequest,omitempty"`
	ShutdownGrace   time.Duration `yaml:"shutdownGrace,omitempty"`
}

// BindHost is the address the worker program listens on.
func (c SupervisorConfig) BindHost() string {
	if c.NetworkExposure == ExposureLocalOnly || c.NetworkExposure == "" {
		return loopbackHost
	}
	return wildcardHost
}

// ProbeHost is the address used to reach the worker from this machine.
// A wildcard bind is always reachable through loopback.
func (c SupervisorConfig) ProbeHost() string {
	return loopbackHost
}

// ProbeURL is the URL polled by the readiness probe and the status command.
func (c SupervisorConfig) ProbeURL() string {
	return fmt.Sprintf("http://%s:%d/", c.ProbeHost(), c.Port)
}

// NetworkAccess reports whether the worker is reachable from other hosts.
func (c SupervisorConfig) NetworkAccess() bool {
	return c.BindHost() != loopbackHost
}

// WorkerEnv returns the variables merged into the worker's environment.
// The secret is generated by the caller per start.
func (c SupervisorConfig) WorkerEnv(secret string) map[string]string {
	exposure := c.NetworkExposure
	if exposure == "" {
		exposure = ExposureLocalOnly
	}
	return map[string]string{
		"PYTHONPATH":         c.WorkingDirectory,
		"MC_SERVERS_PATH":    c.DataDirectory,
		"FRONTEND_DIST_PATH": c.FrontendAssetPath,
		"SECRET_KEY":         secret,
		"NETWORK_ACCESS":     strconv.FormatBool(c.NetworkAccess()),
		"LOCALHOST_ONLY":     strconv.FormatBool(!c.NetworkAccess()),
		"NETWORK_MODE":       string(exposure),
		"PORT":               strconv.Itoa(c.Port),
	}
}
