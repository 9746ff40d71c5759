// Package launcher starts the worker program and decides when it is ready.
//
// Launch spawns the process and arms several listeners at once: stdout and
// stderr line scanners, an HTTP probe poller (primary strategy only), an exit
// watcher, a global timeout and the caller's context. The first signal wins;
// the others see the race resolved and return. A failed start always shuts the
// process down before Launch returns.
package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"panelctl/internal/config"
	"panelctl/pkg/logging"
)

// execCommand allows tests to substitute a fake worker.
var execCommand = exec.Command

// outputDrainTimeout bounds how long exit handling waits for buffered output.
const outputDrainTimeout = time.Second

const maxLineSize = 1024 * 1024

// Launcher starts worker processes for one configuration.
type Launcher struct {
	cfg   config.SupervisorConfig
	probe *HTTPProbe
}

// New creates a launcher for cfg.
func New(cfg config.SupervisorConfig) *Launcher {
	return &Launcher{
		cfg:   cfg,
		probe: NewHTTPProbe(cfg.ProbeURL(), cfg.Timeouts.ProbeRequest),
	}
}

// Shutdown stops h using the configured grace period.
func (l *Launcher) Shutdown(ctx context.Context, h *ProcessHandle) ShutdownOutcome {
	return Shutdown(ctx, h, l.cfg.Timeouts.ShutdownGrace)
}

// Launch starts the worker with python using strategy and blocks until the
// readiness race resolves. On success the handle is marked startup-complete.
// On failure the process has already been shut down and a *StartupError is
// returned.
func (l *Launcher) Launch(ctx context.Context, python string, strategy Strategy) (*ProcessHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StartupError{Reason: ReasonCancelled, Strategy: strategy.Name, Err: err}
	}

	cmd := execCommand(python, strategy.Args...)
	cmd.Dir = l.cfg.WorkingDirectory
	cmd.Env = mergeEnv(os.Environ(), l.cfg.WorkerEnv(uuid.NewString()))
	setProcessGroup(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &StartupError{Reason: ReasonSpawnFailed, Strategy: strategy.Name, Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, &StartupError{Reason: ReasonSpawnFailed, Strategy: strategy.Name, Err: err}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	race := newReadinessRace()

	// Scanners are attached before the process exists so no early line is missed.
	var output sync.WaitGroup
	output.Add(2)
	go func() {
		defer output.Done()
		watchStdout(stdoutR, strategy, race)
	}()
	go func() {
		defer output.Done()
		watchStderr(stderrR, strategy, race)
	}()

	logging.Info("Launcher", "Starting worker (%s strategy): %s %s", strategy.Name, python, strings.Join(strategy.Args, " "))
	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		output.Wait()
		stdoutR.Close()
		stderrR.Close()
		race.cancel()
		return nil, &StartupError{Reason: ReasonSpawnFailed, Strategy: strategy.Name, Err: err}
	}
	stdoutW.Close()
	stderrW.Close()

	h := newProcessHandle(cmd, strategy.Name)
	logging.Debug("Launcher", "Worker started with pid %d", h.pid)
	go h.wait(func() {
		drained := make(chan struct{})
		go func() {
			output.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(outputDrainTimeout):
			logging.Debug("Launcher", "Output of pid %d still open after exit, closing", h.pid)
		}
		stdoutR.Close()
		stderrR.Close()
	})

	var listeners sync.WaitGroup
	spawn := func(f func()) {
		listeners.Add(1)
		go func() {
			defer listeners.Done()
			f()
		}()
	}
	spawn(func() { watchExit(h, race) })
	spawn(func() { watchCancel(ctx, race) })
	if strategy.Timeout > 0 {
		spawn(func() { watchTimeout(strategy.Timeout, race) })
	}
	if strategy.Probe {
		spawn(func() { pollProbe(race, l.probe, l.cfg.Timeouts.ProbeInterval) })
	}

	sig := race.wait()
	listeners.Wait()

	if sig.Ready() {
		h.markReady(sig)
		logging.Info("Launcher", "Worker ready after %s (%s)", sig.Elapsed.Round(time.Millisecond), sig)
		return h, nil
	}

	logging.Warn("Launcher", "Worker did not become ready: %s", sig)
	cleanup := l.Shutdown(context.Background(), h)

	se := &StartupError{
		Reason:   reasonFor(sig.Kind),
		Strategy: strategy.Name,
		Signal:   sig,
		Cleanup:  cleanup,
	}
	if sig.Kind == SignalCancelled {
		se.Err = ctx.Err()
	}
	return nil, se
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return scanner
}

func watchStdout(r io.Reader, strategy Strategy, race *readinessRace) {
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		logging.Info("Worker", "%s", line)
		if strategy.IsReadyLine(line) {
			race.offer(ReadinessSignal{Kind: SignalStdoutMatch, Text: line})
		}
	}
}

func watchStderr(r io.Reader, strategy Strategy, race *readinessRace) {
	scanner := newScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch classifyStderr(line, strategy) {
		case stderrFatal:
			logging.Warn("Worker", "%s", line)
			race.offer(ReadinessSignal{Kind: SignalFatalStderr, Text: line})
		case stderrReady:
			logging.Info("Worker", "%s", line)
			race.offer(ReadinessSignal{Kind: SignalStderrMatch, Text: line})
		default:
			logging.Warn("Worker", "%s", line)
			if hint := stderrHint(line); hint != "" && !race.resolved() {
				logging.Warn("Launcher", "Hint: %s", hint)
			}
		}
	}
}

// watchExit fails the race on an early exit. Clean and interrupted exits are
// tolerated: another instance may already serve the port, so the probe or
// the timeout decides.
func watchExit(h *ProcessHandle, race *readinessRace) {
	select {
	case <-race.done():
		return
	case <-h.Done():
	}

	code := h.ExitCode()
	if toleratedExit(code) {
		logging.Info("Launcher", "Worker exited with code %d before readiness, still waiting", code)
		return
	}
	race.offer(ReadinessSignal{Kind: SignalProcessExit, ExitCode: code})
}

func watchTimeout(d time.Duration, race *readinessRace) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-race.done():
	case <-timer.C:
		race.offer(ReadinessSignal{Kind: SignalTimeout, Text: fmt.Sprintf("no readiness signal within %s", d)})
	}
}

func watchCancel(ctx context.Context, race *readinessRace) {
	select {
	case <-race.done():
	case <-ctx.Done():
		race.offer(ReadinessSignal{Kind: SignalCancelled, Text: ctx.Err().Error()})
	}
}

// mergeEnv overlays extra on base; keys in extra replace existing entries.
func mergeEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[key]; overridden {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
