//go:build !windows

package launcher

import (
	"errors"
	"os/exec"
	"syscall"
)

// setProcessGroup puts the worker in its own group so signals also reach
// the processes it spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(h *ProcessHandle) error {
	return signalGroup(h, syscall.SIGTERM)
}

func kill(h *ProcessHandle) error {
	return signalGroup(h, syscall.SIGKILL)
}

func signalGroup(h *ProcessHandle, sig syscall.Signal) error {
	err := syscall.Kill(-h.pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ESRCH) {
		return h.cmd.Process.Signal(sig)
	}
	return err
}
