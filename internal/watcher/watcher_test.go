package watcher

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) AddHashes(lines []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, lines...)
	return len(lines)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func validHash(seed byte) string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = "0123456789abcdef"[(int(seed)+i)%16]
	}
	return string(b)
}

func TestAddFileBaselinesWithoutAnnouncingExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte(validHash(1)+"\n"), 0o600))

	sink := &recordingSink{}
	w := New(sink, nil, "")
	require.NoError(t, w.AddFile(path))

	require.NoError(t, w.checkGrowth(path))
	assert.Empty(t, sink.all())
}

func TestCheckGrowthIngestsOnlyAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte(validHash(1)+"\n"), 0o600))

	sink := &recordingSink{}
	w := New(sink, nil, "")
	require.NoError(t, w.AddFile(path))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(validHash(2) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	// Ensure the new mtime/tail differ from the baseline even on filesystems
	// with coarse mtime resolution.
	now := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, now, now))

	require.NoError(t, w.checkGrowth(path))
	assert.ElementsMatch(t, []string{validHash(2)}, sink.all())
}

func TestCheckGrowthRebaselinesOnTruncationWithoutReannouncing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte(validHash(1)+"\n"+validHash(2)+"\n"), 0o600))

	sink := &recordingSink{}
	w := New(sink, nil, "")
	require.NoError(t, w.AddFile(path))

	require.NoError(t, os.WriteFile(path, []byte(validHash(3)+"\n"), 0o600))
	now := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(path, now, now))

	require.NoError(t, w.checkGrowth(path))
	assert.Empty(t, sink.all())
}

func TestCheckGrowthUnknownFileIsNoop(t *testing.T) {
	sink := &recordingSink{}
	w := New(sink, nil, "")
	assert.NoError(t, w.checkGrowth("/not/registered"))
}

func TestCheckGrowthMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte(validHash(1)+"\n"), 0o600))

	sink := &recordingSink{}
	w := New(sink, nil, "")
	require.NoError(t, w.AddFile(path))
	require.NoError(t, os.Remove(path))

	assert.NoError(t, w.checkGrowth(path))
}

func TestValidateLinesDropsInvalidAndDeduplicatesAgainstRecentSet(t *testing.T) {
	sink := &recordingSink{}
	w := New(sink, nil, "")

	h1 := validHash(1)
	raw := "\n# comment\n" + h1 + "\n" + h1 + "\nshort\n"
	lines := w.validateLines(bufio.NewScanner(strings.NewReader(raw)))

	assert.Equal(t, []string{h1}, lines)
}

func TestScanIngestDirProcessesKnownExtensionsAndMovesToProcessed(t *testing.T) {
	dir := t.TempDir()
	h1, h2 := validHash(1), validHash(2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.txt"), []byte(h1+"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "batch.hash"), []byte(h2+"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.me"), []byte("irrelevant"), 0o600))

	sink := &recordingSink{}
	w := New(sink, nil, dir)

	require.NoError(t, w.scanIngestDir())

	assert.ElementsMatch(t, []string{h1, h2}, sink.all())

	processed, err := os.ReadDir(filepath.Join(dir, "processed"))
	require.NoError(t, err)
	assert.Len(t, processed, 2)

	remaining, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range remaining {
		names = append(names, e.Name())
	}
	assert.NotContains(t, names, "batch.txt")
	assert.NotContains(t, names, "batch.hash")
	assert.Contains(t, names, "ignore.me")
}

func TestScanIngestDirMissingDirIsNoop(t *testing.T) {
	sink := &recordingSink{}
	w := New(sink, nil, filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, w.scanIngestDir())
}

func TestCircularSetDedupAndEvictionOnWrap(t *testing.T) {
	c := newCircularSet(2)

	assert.False(t, c.seenOrAdd("a"))
	assert.True(t, c.seenOrAdd("a"))

	assert.False(t, c.seenOrAdd("b"))
	// Wraps: "c" evicts "a", freeing it to be seen as new again.
	assert.False(t, c.seenOrAdd("c"))
	assert.False(t, c.seenOrAdd("a"))
}

func TestStartStopPollsAtLeastOnce(t *testing.T) {
	dir := t.TempDir()
	h1 := validHash(1)
	path := filepath.Join(dir, "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte(h1+"\n"), 0o600))

	sink := &recordingSink{}
	w := New(sink, nil, "", WithPollInterval(10*time.Millisecond))
	require.NoError(t, w.AddFile(path))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(validHash(2) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w.Start()
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	assert.Contains(t, sink.all(), validHash(2))
}
