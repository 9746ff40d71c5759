// Package deps provisions the worker program's Python packages.
//
// Both operations are advisory. EnsureDependencies never fails; the result of
// EnsureModuleRunner only decides which startup strategy is used.
package deps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"panelctl/internal/config"
	"panelctl/internal/runner"
	"panelctl/pkg/logging"
)

// Installer runs `python -m pip install` for the worker.
type Installer struct {
	runner       runner.Runner
	workDir      string
	manifest     string
	moduleRunner string
	timeout      time.Duration
	enabled      bool

	versionTimeout time.Duration
}

// NewInstaller creates an installer for the worker described by cfg.
func NewInstaller(cfg config.SupervisorConfig, r runner.Runner) *Installer {
	if r == nil {
		r = runner.New()
	}
	return &Installer{
		runner:       r,
		workDir:      cfg.WorkingDirectory,
		manifest:     cfg.Worker.Manifest,
		moduleRunner: cfg.Worker.ModuleRunner,
		timeout:      cfg.Timeouts.Install,
		enabled:      cfg.Worker.ShouldInstallDependencies(),

		versionTimeout: cfg.Timeouts.VersionProbe,
	}
}

// ManifestPath returns the absolute manifest location, or "" if none is configured.
func (i *Installer) ManifestPath() string {
	if i.manifest == "" {
		return ""
	}
	if filepath.IsAbs(i.manifest) {
		return i.manifest
	}
	return filepath.Join(i.workDir, i.manifest)
}

// EnsureDependencies installs the manifest's packages if the manifest exists.
// Failures are logged as warnings and otherwise ignored.
func (i *Installer) EnsureDependencies(ctx context.Context, python string) {
	if !i.enabled {
		logging.Debug("Installer", "Dependency installation disabled")
		return
	}
	manifest := i.ManifestPath()
	if manifest == "" {
		return
	}
	if _, err := os.Stat(manifest); err != nil {
		logging.Debug("Installer", "No dependency manifest at %s", manifest)
		return
	}

	logging.Info("Installer", "Installing dependencies from %s", manifest)
	if err := i.pip(ctx, python, "-r", manifest); err != nil {
		logging.Warn("Installer", "Dependency installation failed, continuing: %v", err)
		return
	}
	logging.Info("Installer", "Dependencies installed")
}

// EnsureModuleRunner installs the module runner the primary strategy needs.
// With installs disabled it only checks that the runner is importable.
// A non-nil error means the fallback strategy should be used.
func (i *Installer) EnsureModuleRunner(ctx context.Context, python string) error {
	if i.moduleRunner == "" {
		return errors.New("no module runner configured")
	}
	if !i.enabled {
		return i.checkModuleRunner(ctx, python)
	}
	logging.Info("Installer", "Ensuring %s is installed", i.moduleRunner)
	if err := i.pip(ctx, python, i.moduleRunner); err != nil {
		return fmt.Errorf("installing %s: %w", i.moduleRunner, err)
	}
	return nil
}

func (i *Installer) checkModuleRunner(ctx context.Context, python string) error {
	opts := []runner.Option{runner.WithDir(i.workDir)}
	if i.versionTimeout > 0 {
		opts = append(opts, runner.WithTimeout(i.versionTimeout))
	}
	out, err := i.runner.Run(ctx, python, []string{"-m", i.moduleRunner, "--version"}, opts...)
	if err != nil {
		return fmt.Errorf("%s is not installed and installation is disabled: %w", i.moduleRunner, err)
	}
	logging.Debug("Installer", "Found %s: %s", i.moduleRunner, out)
	return nil
}

func (i *Installer) pip(ctx context.Context, python string, args ...string) error {
	opts := []runner.Option{runner.WithDir(i.workDir)}
	if i.timeout > 0 {
		opts = append(opts, runner.WithTimeout(i.timeout))
	}
	out, err := i.runner.Run(ctx, python, append([]string{"-m", "pip", "install"}, args...), opts...)
	if err != nil {
		return err
	}
	logging.Debug("Installer", "pip output: %s", out)
	return nil
}
