// Package sandbox resolves and validates externally supplied file paths
// against an allow-listed set of roots, the way core/security.py's
// SecurityValidator does for the original orchestrator.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hackandbackpack/hashwrap/internal/errs"
)

// DefaultMaxFileSize is the default cap on validated file size (10 GB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024 * 1024

// Sandbox holds the allow-listed roots a path must resolve beneath.
type Sandbox struct {
	roots       []string
	maxFileSize int64
}

// New builds a Sandbox from an explicit list of extra roots, in addition to
// the standard roots (CWD, CWD/wordlists, CWD/rules, CWD/hashes,
// $HOME/.hashwrap, the OS temp dir).
func New(extraRoots []string, maxFileSize int64) (*Sandbox, error) {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve cwd: %w", err)
	}

	roots := []string{
		cwd,
		filepath.Join(cwd, "wordlists"),
		filepath.Join(cwd, "rules"),
		filepath.Join(cwd, "hashes"),
		os.TempDir(),
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".hashwrap"))
	}
	roots = append(roots, extraRoots...)

	resolved := make([]string, 0, len(roots))
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		resolved = append(resolved, abs)
	}

	return &Sandbox{roots: resolved, maxFileSize: maxFileSize}, nil
}

// Roots returns the allow-listed root directories (for logging/tests).
func (s *Sandbox) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Validate resolves path (following symlinks) and confirms it lies beneath
// one of the allowed roots. If mustExist is true, the path must already
// exist; otherwise only its parent directory must resolve safely (used for
// paths the engine is about to create, such as a session's potfile). When
// the file exists, its size is checked against the configured cap.
func (s *Sandbox) Validate(path string, mustExist bool) (string, error) {
	if path == "" {
		return "", errs.New(errs.KindValidation, errs.SeverityCritical, "sandbox.Validate", "empty_path", nil, nil)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.New(errs.KindFileAccess, errs.SeverityCritical, "sandbox.Validate", "unresolvable_path", map[string]string{"path": path}, err)
	}

	resolved, err := s.resolveSymlinks(abs)
	if err != nil {
		if mustExist {
			return "", errs.FileNotFound("sandbox.Validate", path, err)
		}
		// Parent must still exist and resolve within bounds.
		parentResolved, perr := s.resolveSymlinks(filepath.Dir(abs))
		if perr != nil {
			return "", errs.FileNotFound("sandbox.Validate", path, perr)
		}
		if !s.withinRoots(parentResolved) {
			return "", errs.OutsideSandbox("sandbox.Validate", path, nil)
		}
		return abs, nil
	}

	if !s.withinRoots(resolved) {
		return "", errs.OutsideSandbox("sandbox.Validate", path, nil)
	}

	if info, err := os.Stat(resolved); err == nil && !info.IsDir() {
		if info.Size() > s.maxFileSize {
			return "", errs.New(errs.KindValidation, errs.SeverityCritical, "sandbox.Validate", "file_too_large",
				map[string]string{"path": path, "size": fmt.Sprintf("%d", info.Size())}, nil)
		}
	}

	return resolved, nil
}

// resolveSymlinks resolves path to its real location, requiring every path
// component up to the deepest existing ancestor to exist.
func (s *Sandbox) resolveSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

func (s *Sandbox) withinRoots(resolved string) bool {
	for _, root := range s.roots {
		if resolved == root {
			return true
		}
		if strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}
