package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsFileWithinExtraRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte("aaaa\n"), 0o644))

	sb, err := New([]string{dir}, 0)
	require.NoError(t, err)

	resolved, err := sb.Validate(path, true)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func TestValidateRejectsPathOutsideAllowedRoots(t *testing.T) {
	sb, err := New(nil, 0)
	require.NoError(t, err)

	_, err = sb.Validate("/etc/passwd", true)
	assert.Error(t, err)
}

func TestValidateRejectsTraversalEscapingRoot(t *testing.T) {
	dir := t.TempDir()
	sb, err := New([]string{dir}, 0)
	require.NoError(t, err)

	escaped := filepath.Join(dir, "..", "..", "..", "etc", "passwd")
	_, err = sb.Validate(escaped, true)
	assert.Error(t, err)
}

func TestValidateMustExistRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	sb, err := New([]string{dir}, 0)
	require.NoError(t, err)

	_, err = sb.Validate(filepath.Join(dir, "missing.txt"), true)
	assert.Error(t, err)
}

func TestValidateAllowsNonexistentFileWhenParentResolvesWithinRoot(t *testing.T) {
	dir := t.TempDir()
	sb, err := New([]string{dir}, 0)
	require.NoError(t, err)

	resolved, err := sb.Validate(filepath.Join(dir, "to-be-created.potfile"), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "to-be-created.potfile"), resolved)
}

func TestValidateRejectsEmptyPath(t *testing.T) {
	sb, err := New(nil, 0)
	require.NoError(t, err)

	_, err = sb.Validate("", true)
	assert.Error(t, err)
}

func TestValidateRejectsFilesOverSizeCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	sb, err := New([]string{dir}, 5)
	require.NoError(t, err)

	_, err = sb.Validate(path, true)
	assert.Error(t, err)
}

func TestValidateRejectsSymlinkEscapingRoot(t *testing.T) {
	inside := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0o644))

	link := filepath.Join(inside, "link.txt")
	if err := os.Symlink(outsideFile, link); err != nil {
		t.Skipf("symlinks unavailable in this environment: %v", err)
	}

	sb, err := New([]string{inside}, 0)
	require.NoError(t, err)

	_, err = sb.Validate(link, true)
	assert.Error(t, err)
}
