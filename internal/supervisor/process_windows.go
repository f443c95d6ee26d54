//go:build windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup configures cmd to start with CREATE_NEW_PROCESS_GROUP so
// the child and any processes it spawns can be signalled as a unit.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// There is no Windows equivalent of POSIX kill(-pgid, sig): graceful
// terminate is approximated with a CTRL_BREAK_EVENT to the process group,
// and pause/resume have no first-class signal at all on this platform.
// These are best-effort; the forceful kill path is always reliable and is
// what the cancellation deadline ultimately relies on to make progress.

var (
	kernel32                     = syscall.NewLazyDLL("kernel32.dll")
	procGenerateConsoleCtrlEvent = kernel32.NewProc("GenerateConsoleCtrlEvent")
)

const ctrlBreakEvent = 1

func sendTerminate(pid int) error {
	r, _, _ := procGenerateConsoleCtrlEvent.Call(uintptr(ctrlBreakEvent), uintptr(pid))
	if r == 0 {
		return syscall.GetLastError()
	}
	return nil
}

func sendKill(pid int) error {
	proc, err := syscall.OpenProcess(syscall.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer syscall.CloseHandle(proc)
	return syscall.TerminateProcess(proc, 1)
}

func sendStop(pid int) error {
	// No pause primitive on Windows; the caller tracks paused state
	// itself and simply does not feed the deadline forward.
	return nil
}

func sendContinue(pid int) error {
	return nil
}
