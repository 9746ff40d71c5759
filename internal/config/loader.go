package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/panelctl"
	projectConfigDir = ".panelctl"
	configFileName   = "config.yaml"
)

// LoadConfig loads the configuration by layering default, user, and project settings.
func LoadConfig() (SupervisorConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. User-specific configuration
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if _, err := os.Stat(userConfigPath); err == nil {
		userConfig, err := loadConfigFromFile(userConfigPath)
		if err != nil {
			return SupervisorConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
		config = mergeConfigs(config, userConfig)
	}

	// 3. Project-specific configuration
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if _, err := os.Stat(projectConfigPath); err == nil {
		projectConfig, err := loadConfigFromFile(projectConfigPath)
		if err != nil {
			return SupervisorConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
		config = mergeConfigs(config, projectConfig)
	}

	return finalize(config)
}

// LoadConfigFromPath loads a single configuration file on top of the defaults.
// Relative directories inside the file are resolved against the file's directory.
func LoadConfigFromPath(path string) (SupervisorConfig, error) {
	fileConfig, err := loadConfigFromFile(path)
	if err != nil {
		return SupervisorConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	config := mergeConfigs(GetDefaultConfig(), fileConfig)
	config = resolvePaths(config, filepath.Dir(path))
	return finalize(config)
}

var getUserConfigPath = func() (string, error) {
	dir, err := GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// LayeredConfigPaths returns the user and project config files LoadConfig
// reads, in the order they are applied. The files need not exist.
func LayeredConfigPaths() ([]string, error) {
	userPath, err := getUserConfigPath()
	if err != nil {
		return nil, fmt.Errorf("could not determine user config path: %w", err)
	}
	projectPath, err := getProjectConfigPath()
	if err != nil {
		return nil, fmt.Errorf("could not determine project config path: %w", err)
	}
	return []string{userPath, projectPath}, nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// loadConfigFromFile loads a SupervisorConfig overlay from a YAML file.
func loadConfigFromFile(filePath string) (SupervisorConfig, error) {
	var config SupervisorConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return SupervisorConfig{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return SupervisorConfig{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values and
// unset switches in the overlay leave the base untouched.
func mergeConfigs(base, overlay SupervisorConfig) SupervisorConfig {
	merged := base

	if overlay.WorkingDirectory != "" {
		merged.WorkingDirectory = overlay.WorkingDirectory
	}
	if overlay.DataDirectory != "" {
		merged.DataDirectory = overlay.DataDirectory
	}
	if overlay.FrontendAssetPath != "" {
		merged.FrontendAssetPath = overlay.FrontendAssetPath
	}
	if overlay.ResourcesPath != "" {
		merged.ResourcesPath = overlay.ResourcesPath
	}
	if overlay.NetworkExposure != "" {
		merged.NetworkExposure = overlay.NetworkExposure
	}
	if overlay.Port != 0 {
		merged.Port = overlay.Port
	}
	if overlay.Autostart != nil {
		v := *overlay.Autostart
		merged.Autostart = &v
	}

	if overlay.Interpreter.Path != "" {
		merged.Interpreter.Path = overlay.Interpreter.Path
	}
	if overlay.Interpreter.MinVersion != "" {
		merged.Interpreter.MinVersion = overlay.Interpreter.MinVersion
	}

	if overlay.Worker.ModuleRunner != "" {
		merged.Worker.ModuleRunner = overlay.Worker.ModuleRunner
	}
	if overlay.Worker.AppTarget != "" {
		merged.Worker.AppTarget = overlay.Worker.AppTarget
	}
	if overlay.Worker.Entrypoint != "" {
		merged.Worker.Entrypoint = overlay.Worker.Entrypoint
	}
	if overlay.Worker.Manifest != "" {
		merged.Worker.Manifest = overlay.Worker.Manifest
	}
	if overlay.Worker.InstallDependencies != nil {
		v := *overlay.Worker.InstallDependencies
		merged.Worker.InstallDependencies = &v
	}

	merged.Timeouts = mergeTimeouts(base.Timeouts, overlay.Timeouts)
	return merged
}

func mergeTimeouts(base, overlay TimeoutConfig) TimeoutConfig {
	pick := func(b, o time.Duration) time.Duration {
		if o != 0 {
			return o
		}
		return b
	}
	return TimeoutConfig{
		VersionProbe:    pick(base.VersionProbe, overlay.VersionProbe),
		Install:         pick(base.Install, overlay.Install),
		Startup:         pick(base.Startup, overlay.Startup),
		FallbackStartup: pick(base.FallbackStartup, overlay.FallbackStartup),
		ProbeInterval:   pick(base.ProbeInterval, overlay.ProbeInterval),
		ProbeRequest:    pick(base.ProbeRequest, overlay.ProbeRequest),
		ShutdownGrace:   pick(base.ShutdownGrace, overlay.ShutdownGrace),
	}
}

func resolvePaths(c SupervisorConfig, baseDir string) SupervisorConfig {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.WorkingDirectory = resolve(c.WorkingDirectory)
	c.DataDirectory = resolve(c.DataDirectory)
	c.FrontendAssetPath = resolve(c.FrontendAssetPath)
	c.ResourcesPath = resolve(c.ResourcesPath)
	return c
}

func finalize(c SupervisorConfig) (SupervisorConfig, error) {
	c.NetworkExposure = NetworkExposure(strings.ToLower(string(c.NetworkExposure)))
	if err := Validate(c); err != nil {
		return SupervisorConfig{}, err
	}
	return c, nil
}

// Validate checks a configuration for values the supervisor cannot work with.
func Validate(c SupervisorConfig) error {
	var errs []error

	if c.WorkingDirectory == "" {
		errs = append(errs, errors.New("workingDirectory is required"))
	}
	if !c.NetworkExposure.Valid() {
		errs = append(errs, fmt.Errorf("networkExposure %q must be one of %s, %s, %s",
			c.NetworkExposure, ExposureLocalOnly, ExposureLocalNetwork, ExposurePublic))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.Worker.ModuleRunner == "" || c.Worker.AppTarget == "" || c.Worker.Entrypoint == "" {
		errs = append(errs, errors.New("worker.moduleRunner, worker.appTarget and worker.entrypoint are required"))
	}

	t := c.Timeouts
	for name, d := range map[string]time.Duration{
		"versionProbe":    t.VersionProbe,
		"install":         t.Install,
		"startup":         t.Startup,
		"fallbackStartup": t.FallbackStartup,
		"probeInterval":   t.ProbeInterval,
		"probeRequest":    t.ProbeRequest,
		"shutdownGrace":   t.ShutdownGrace,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("timeouts.%s must be positive", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
