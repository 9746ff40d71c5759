package launcher

import (
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// exitCodeInterrupted is what a shell reports for a process ended by SIGINT.
const exitCodeInterrupted = 130

// toleratedExit reports whether an exit before readiness is not a failure.
func toleratedExit(code int) bool {
	return code == 0 || code == exitCodeInterrupted
}

// ProcessHandle wraps one live worker process. It is created by Launch and
// terminated by Shutdown.
type ProcessHandle struct {
	cmd       *exec.Cmd
	pid       int
	strategy  StrategyName
	startedAt time.Time

	running         atomic.Bool
	startupComplete atomic.Bool
	readySignal     ReadinessSignal

	done     chan struct{}
	exitCode int
	waitErr  error

	shutdownMu sync.Mutex
}

func newProcessHandle(cmd *exec.Cmd, strategy StrategyName) *ProcessHandle {
	h := &ProcessHandle{
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		strategy:  strategy,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		exitCode:  -1,
	}
	h.running.Store(true)
	return h
}

// PID returns the worker's process id.
func (h *ProcessHandle) PID() int { return h.pid }

// Strategy returns how the worker was started.
func (h *ProcessHandle) Strategy() StrategyName { return h.strategy }

// StartedAt returns the spawn time.
func (h *ProcessHandle) StartedAt() time.Time { return h.startedAt }

// Running reports whether the process has not exited yet.
func (h *ProcessHandle) Running() bool { return h.running.Load() }

// StartupComplete reports whether readiness was confirmed.
func (h *ProcessHandle) StartupComplete() bool { return h.startupComplete.Load() }

// ReadySignal returns the signal that confirmed readiness.
func (h *ProcessHandle) ReadySignal() ReadinessSignal { return h.readySignal }

// Done is closed once the process has exited and its output is drained.
func (h *ProcessHandle) Done() <-chan struct{} { return h.done }

// ExitCode returns the exit code, 128+signal when killed by a signal, or -1
// while the process is still running.
func (h *ProcessHandle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}

// markReady flips startupComplete once; later calls return false.
func (h *ProcessHandle) markReady(sig ReadinessSignal) bool {
	if !h.startupComplete.CompareAndSwap(false, true) {
		return false
	}
	h.readySignal = sig
	return true
}

// wait reaps the process. drain runs after exit and before Done is closed,
// so every output line is handled before anyone observes the exit.
func (h *ProcessHandle) wait(drain func()) {
	h.waitErr = h.cmd.Wait()
	code := exitCodeOf(h.cmd.ProcessState)
	if drain != nil {
		drain()
	}
	h.exitCode = code
	h.running.Store(false)
	close(h.done)
}

func exitCodeOf(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}
