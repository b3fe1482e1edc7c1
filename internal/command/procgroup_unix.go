//go:build unix

package command

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// setProcessGroup starts the command as the leader of a new process group.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// terminate sends SIGTERM to the process group and arms a SIGKILL for the
// whole group after grace. The caller stops the timer once Wait returns.
func terminate(cmd *exec.Cmd, grace time.Duration) *time.Timer {
	if cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	if err := signalGroup(pid, syscall.SIGTERM); err != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	return time.AfterFunc(grace, func() {
		if err := signalGroup(pid, syscall.SIGKILL); err != nil {
			_ = cmd.Process.Kill()
		}
	})
}

// signalGroup signals every process in the group led by pid. A group that
// has already exited counts as success.
func signalGroup(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}
