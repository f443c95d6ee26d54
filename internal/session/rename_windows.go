//go:build windows

package session

import "os"

// RenameOver replaces dst with src. Windows rename does not overwrite an
// existing destination, so the canonical file is unlinked first; a crash
// between the unlink and the rename leaves no session file, which the
// resume path treats the same as "session not found" rather than silently
// reviving a stale one.
func RenameOver(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	return os.Rename(src, dst)
}
