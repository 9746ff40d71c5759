//go:build windows

package launcher

import (
	"errors"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Console processes cannot be asked to stop from outside their console, so
// shutdown goes straight to kill.
func terminate(h *ProcessHandle) error {
	return errors.New("graceful termination not supported on windows")
}

func kill(h *ProcessHandle) error {
	return h.cmd.Process.Kill()
}
