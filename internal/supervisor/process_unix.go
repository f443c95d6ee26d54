//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup configures cmd to start in its own process group (POSIX
// setsid-equivalent) so that cracker-spawned helpers are collected together
// on cancellation.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func sendTerminate(pid int) error { return syscall.Kill(-pid, syscall.SIGTERM) }
func sendKill(pid int) error      { return syscall.Kill(-pid, syscall.SIGKILL) }
func sendStop(pid int) error      { return syscall.Kill(-pid, syscall.SIGSTOP) }
func sendContinue(pid int) error  { return syscall.Kill(-pid, syscall.SIGCONT) }
