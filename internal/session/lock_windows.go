//go:build windows

package session

import (
	"os"

	"golang.org/x/sys/windows"
)

// Lock wraps a Windows byte-range exclusive lock on a sibling *.lock file,
// the platform counterpart to flock on POSIX.
type Lock struct {
	f *os.File
}

// AcquireLock takes a non-blocking exclusive lock on path, creating it if
// necessary. Callers implement their own bounded retry/back-off around this;
// a held lock returns an error immediately rather than blocking.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	if err := windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol); err != nil {
		f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(l.f.Fd()), 0, 1, 0, ol)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
