//go:build !windows

package session

import "os"

// RenameOver atomically replaces dst with src, the POSIX rename(2)
// guarantee the checkpoint protocol relies on.
func RenameOver(src, dst string) error {
	return os.Rename(src, dst)
}
