package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"panelctl/pkg/logging"
)

// ShutdownOutcome describes how a stop request ended.
type ShutdownOutcome struct {
	ExitedGracefully bool
	Forced           bool
	AlreadyStopped   bool
	Elapsed          time.Duration
}

func (o ShutdownOutcome) String() string {
	switch {
	case o.AlreadyStopped:
		return "already stopped"
	case o.Forced:
		return fmt.Sprintf("killed after %s", o.Elapsed.Round(time.Millisecond))
	default:
		return fmt.Sprintf("exited after %s", o.Elapsed.Round(time.Millisecond))
	}
}

// Shutdown sends the graceful termination signal, waits up to grace for the
// process to exit and then kills it. It returns once the process is gone.
// Calling it for a nil or exited handle returns an AlreadyStopped outcome.
// Cancelling ctx skips the rest of the grace period.
func Shutdown(ctx context.Context, h *ProcessHandle, grace time.Duration) ShutdownOutcome {
	if h == nil {
		return ShutdownOutcome{AlreadyStopped: true}
	}

	h.shutdownMu.Lock()
	defer h.shutdownMu.Unlock()

	select {
	case <-h.done:
		return ShutdownOutcome{AlreadyStopped: true}
	default:
	}

	start := time.Now()
	logging.Info("Shutdown", "Stopping worker (pid %d)", h.pid)

	if err := terminate(h); err != nil {
		logging.Debug("Shutdown", "Graceful signal to pid %d failed: %v", h.pid, err)
		return forceKill(h, start)
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	select {
	case <-h.done:
		return graceful(h, start)
	case <-deadline.C:
		logging.Warn("Shutdown", "Worker (pid %d) did not exit within %s, killing", h.pid, grace)
	case <-ctx.Done():
		logging.Warn("Shutdown", "Shutdown of pid %d cancelled, killing", h.pid)
	}

	// it may have exited right at the deadline
	select {
	case <-h.done:
		return graceful(h, start)
	default:
	}
	return forceKill(h, start)
}

func graceful(h *ProcessHandle, start time.Time) ShutdownOutcome {
	elapsed := time.Since(start)
	logging.Info("Shutdown", "Worker (pid %d) exited with code %d after %s", h.pid, h.exitCode, elapsed.Round(time.Millisecond))
	return ShutdownOutcome{ExitedGracefully: true, Elapsed: elapsed}
}

func forceKill(h *ProcessHandle, start time.Time) ShutdownOutcome {
	if err := kill(h); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-h.done
			return graceful(h, start)
		}
		logging.Error("Shutdown", err, "Failed to kill worker (pid %d)", h.pid)
	}
	<-h.done
	elapsed := time.Since(start)
	logging.Warn("Shutdown", "Worker (pid %d) killed after %s", h.pid, elapsed.Round(time.Millisecond))
	return ShutdownOutcome{Forced: true, Elapsed: elapsed}
}
