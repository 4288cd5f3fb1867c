//go:build !windows

package sync

import (
	"os/exec"
	"syscall"
)

// sysProcAttr puts the subprocess in its own process group so a timeout kill
// reaches helpers rclone spawns, not just rclone itself.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// killTree signals the whole process group.
func killTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
