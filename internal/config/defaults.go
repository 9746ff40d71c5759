package config

import (
	"path/filepath"
	"time"
)

// DefaultPort is the port the panel backend has always used.
const DefaultPort = 1105

// GetDefaultConfig returns the built-in configuration. Directories default to
// the layout next to the current working directory.
func GetDefaultConfig() SupervisorConfig {
	return SupervisorConfig{
		WorkingDirectory:  "backend",
		DataDirectory:     filepath.Join("backend", "mc_servers"),
		FrontendAssetPath: filepath.Join("backend", "frontend_dist"),
		NetworkExposure:   ExposureLocalOnly,
		Port:              DefaultPort,
		Interpreter: InterpreterConfig{
			MinVersion: "3.8",
		},
		Worker: WorkerConfig{
			ModuleRunner: "uvicorn",
			AppTarget:    "main:app",
			Entrypoint:   "main.py",
			Manifest:     "requirements.txt",
		},
		Timeouts: DefaultTimeouts(),
	}
}

// DefaultTimeouts returns the bounded waits used when a config leaves them unset.
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		VersionProbe:    10 * time.Second,
		Install:         5 * time.Minute,
		Startup:         60 * time.Second,
		FallbackStartup: 15 * time.Second,
		ProbeInterval:   500 * time.Millisecond,
		ProbeRequest:    3 * time.Second,
		ShutdownGrace:   5 * time.Second,
	}
}
