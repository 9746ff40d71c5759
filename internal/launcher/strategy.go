package launcher

import (
	"strconv"
	"strings"
	"time"

	"panelctl/internal/config"
)

// StrategyName identifies how the worker program is invoked.
type StrategyName string

const (
	// StrategyPrimary runs the worker through its module runner with explicit host/port flags.
	StrategyPrimary StrategyName = "primary"
	// StrategyFallback runs the worker's entrypoint script directly.
	StrategyFallback StrategyName = "fallback"
)

// Phrases the worker is known to print once it serves traffic. They are a
// fast path only; the HTTP probe is authoritative for the primary strategy.
var (
	PrimaryReadyPhrases  = []string{"Uvicorn running on", "Application startup complete"}
	FallbackReadyPhrases = []string{"running on", "started", "listening"}
)

// Strategy describes one way of starting the worker and how its readiness is judged.
type Strategy struct {
	Name            StrategyName
	Args            []string // passed to the interpreter
	ReadyPhrases    []string
	CaseInsensitive bool
	Probe           bool // poll the HTTP endpoint while waiting
	Timeout         time.Duration
}

// PrimaryStrategy returns `-m <moduleRunner> <appTarget> --host <bind> --port <port>`.
func PrimaryStrategy(cfg config.SupervisorConfig) Strategy {
	return Strategy{
		Name: StrategyPrimary,
		Args: []string{
			"-m", cfg.Worker.ModuleRunner, cfg.Worker.AppTarget,
			"--host", cfg.BindHost(),
			"--port", strconv.Itoa(cfg.Port),
		},
		ReadyPhrases: PrimaryReadyPhrases,
		Probe:        true,
		Timeout:      cfg.Timeouts.Startup,
	}
}

// FallbackStrategy runs the entrypoint script with looser phrase matching,
// no probe, and the shorter fallback timeout.
func FallbackStrategy(cfg config.SupervisorConfig) Strategy {
	return Strategy{
		Name:            StrategyFallback,
		Args:            []string{cfg.Worker.Entrypoint},
		ReadyPhrases:    FallbackReadyPhrases,
		CaseInsensitive: true,
		Timeout:         cfg.Timeouts.FallbackStartup,
	}
}

// IsReadyLine reports whether line contains one of the strategy's ready phrases.
func (s Strategy) IsReadyLine(line string) bool {
	if s.CaseInsensitive {
		line = strings.ToLower(line)
	}
	for _, phrase := range s.ReadyPhrases {
		if s.CaseInsensitive {
			phrase = strings.ToLower(phrase)
		}
		if strings.Contains(line, phrase) {
			return true
		}
	}
	return false
}
