//go:build !windows

package session

import (
	"os"

	"golang.org/x/sys/unix"
)

// Lock wraps a POSIX advisory exclusive lock (flock LOCK_EX) on a sibling
// *.lock file.
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
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
