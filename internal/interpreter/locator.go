// Package interpreter finds a usable Python runtime for the worker program.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"panelctl/internal/config"
	"panelctl/internal/runner"
	"panelctl/pkg/logging"

	"github.com/hashicorp/go-version"
)

// RequiredMajor is the interpreter major version the worker program needs.
const RequiredMajor = 3

// Kind tells where a candidate came from.
type Kind string

const (
	KindExplicit Kind = "explicit"
	KindBundled  Kind = "bundled"
	KindSystem   Kind = "system"
)

// Candidate is one interpreter the locator will try.
type Candidate struct {
	Path string
	Kind Kind
}

// Interpreter is a candidate whose version probe succeeded.
type Interpreter struct {
	Path    string
	Kind    Kind
	Version *version.Version
}

func (i *Interpreter) String() string {
	return fmt.Sprintf("%s (%s, Python %s)", i.Path, i.Kind, i.Version)
}

// ErrNotFound is returned (wrapped in *NotFoundError) when no candidate qualifies.
var ErrNotFound = errors.New("no usable Python interpreter found")

// NotFoundError lists every candidate that was tried.
type NotFoundError struct {
	Required string
	Tried    []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v (need Python %s or higher; tried %s)", ErrNotFound, e.Required, strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

var versionPattern = regexp.MustCompile(`Python (\d+(?:\.\d+){0,2})`)

// ParseVersion extracts the version from `python --version` output.
func ParseVersion(output string) (*version.Version, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("no Python version in %q", strings.TrimSpace(output))
	}
	return version.NewVersion(m[1])
}

// For mocking in tests
var osStat = os.Stat

// Candidates returns the ordered search list: an explicit path, bundled
// copies under the resources directory, then commands on PATH.
func Candidates(cfg config.SupervisorConfig) []Candidate {
	var out []Candidate
	if cfg.Interpreter.Path != "" {
		out = append(out, Candidate{Path: cfg.Interpreter.Path, Kind: KindExplicit})
	}

	exe := "python"
	if runtime.GOOS == "windows" {
		exe = "python.exe"
	}
	if cfg.ResourcesPath != "" {
		out = append(out,
			Candidate{Path: filepath.Join(cfg.ResourcesPath, "python", exe), Kind: KindBundled},
			Candidate{Path: filepath.Join(cfg.ResourcesPath, "python", "bin", exe), Kind: KindBundled},
			Candidate{Path: filepath.Join(cfg.ResourcesPath, exe), Kind: KindBundled},
		)
	}

	for _, name := range []string{"python", "python3", "py"} {
		out = append(out, Candidate{Path: name, Kind: KindSystem})
	}
	return out
}

// Locator probes candidates in order and returns the first acceptable one.
type Locator struct {
	runner       runner.Runner
	candidates   []Candidate
	minVersion   *version.Version
	probeTimeout time.Duration
}

// NewLocator creates a locator for the candidates derived from cfg.
func NewLocator(cfg config.SupervisorConfig, r runner.Runner) (*Locator, error) {
	return NewLocatorWithCandidates(Candidates(cfg), cfg.Interpreter.MinVersion, cfg.Timeouts.VersionProbe, r)
}

// NewLocatorWithCandidates creates a locator over an explicit candidate list.
func NewLocatorWithCandidates(candidates []Candidate, minVersion string, probeTimeout time.Duration, r runner.Runner) (*Locator, error) {
	if minVersion == "" {
		minVersion = fmt.Sprintf("%d.0", RequiredMajor)
	}
	floor, err := version.NewVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum interpreter version %q: %w", minVersion, err)
	}
	if floor.Segments()[0] != RequiredMajor {
		return nil, fmt.Errorf("minimum interpreter version %s must be within Python %d", floor, RequiredMajor)
	}
	if r == nil {
		r = runner.New()
	}
	return &Locator{
		runner:       r,
		candidates:   candidates,
		minVersion:   floor,
		probeTimeout: probeTimeout,
	}, nil
}

// Locate returns the first candidate that reports a suitable version. Probe
// failures are skipped. If nothing qualifies a *NotFoundError is returned.
func (l *Locator) Locate(ctx context.Context) (*Interpreter, error) {
	tried := make([]string, 0, len(l.candidates))

	for _, c := range l.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if c.Kind == KindBundled {
			info, err := osStat(c.Path)
			if err != nil || info.IsDir() {
				logging.Debug("Locator", "Bundled interpreter %s not present", c.Path)
				continue
			}
		}
		tried = append(tried, c.Path)

		var opts []runner.Option
		if l.probeTimeout > 0 {
			opts = append(opts, runner.WithTimeout(l.probeTimeout))
		}
		out, err := l.runner.Run(ctx, c.Path, []string{"--version"}, opts...)
		if err != nil {
			logging.Debug("Locator", "Probe of %s failed: %v", c.Path, err)
			continue
		}

		v, err := ParseVersion(out)
		if err != nil {
			logging.Debug("Locator", "Ignoring %s: %v", c.Path, err)
			continue
		}
		if v.Segments()[0] != RequiredMajor || v.LessThan(l.minVersion) {
			logging.Debug("Locator", "Ignoring %s: Python %s does not satisfy >= %s", c.Path, v, l.minVersion)
			continue
		}

		found := &Interpreter{Path: c.Path, Kind: c.Kind, Version: v}
		logging.Info("Locator", "Using interpreter %s", found)
		return found, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &NotFoundError{Required: l.minVersion.String(), Tried: tried}
}
