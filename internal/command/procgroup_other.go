//go:build !unix

package command

import (
	"os/exec"
	"time"
)

func setProcessGroup(*exec.Cmd) {}

// terminate kills the process directly; there is no group to signal.
func terminate(cmd *exec.Cmd, _ time.Duration) *time.Timer {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	return nil
}
