//go:build !windows

package health

import (
	"os/exec"
	"syscall"
)

// spawnDetached starts the command in its own session so it survives daemon
// shutdown and never receives our terminal signals.
func spawnDetached(exe string, args ...string) error {
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
