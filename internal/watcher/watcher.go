// Package watcher implements the engine's file watcher: polling watched
// hash files for growth and scanning an ingestion directory for operator
// hot-reload drops, grounded on core/hash_watcher.py's HashReloader and the
// file-watch poll loop in the teacher's own internal/hardware/monitor.go
// (periodic stat-based polling rather than OS filesystem-event APIs).
package watcher

import (
	"bufio"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bodgit/sevenzip"

	"github.com/hackandbackpack/hashwrap/internal/ratelimit"
	"github.com/hackandbackpack/hashwrap/internal/validate"
)

// PollInterval is the default polling cadence for both watched files and
// the ingestion directory.
const PollInterval = 5 * time.Second

// tailSampleSize bounds how much of a file's tail is hashed when detecting
// change beyond a plain size/mtime comparison.
const tailSampleSize = 1 << 20 // 1 MiB

// recentBufferSize bounds the circular recent-hash dedup buffer, per the
// streaming-processor's CircularHashBuffer supplement.
const recentBufferSize = 100_000

// knownIngestExtensions are the file extensions scanned from the ingestion
// directory. ".7z" is decompressed via bodgit/sevenzip before validation.
var knownIngestExtensions = map[string]bool{
	".txt":  true,
	".hash": true,
	".lst":  true,
	".7z":   true,
}

// HashSink receives validated hashes discovered by the watcher. The engine's
// hashindex.Index satisfies this.
type HashSink interface {
	AddHashes(lines []string) int
}

// Logger is the minimal logging surface the watcher needs.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}

type fileState struct {
	mtime   time.Time
	size    int64
	tailMD5 [16]byte
}

// Watcher polls a set of watched hash files plus an ingestion directory,
// feeding newly discovered, validated hashes to a HashSink.
type Watcher struct {
	sink HashSink
	log  Logger

	mu        sync.Mutex
	watched   map[string]*fileState
	ingestDir string
	poll      time.Duration
	limiter   *ratelimit.Bucket
	recent    *circularSet
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option customizes a Watcher at construction.
type Option func(*Watcher)

// WithPollInterval overrides the default 5s poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.poll = d }
}

// WithRateLimiter gates ingestion-directory scans and hash-file reads
// through limiter, per the engine's global token-bucket (§5).
func WithRateLimiter(limiter *ratelimit.Bucket) Option {
	return func(w *Watcher) { w.limiter = limiter }
}

// New builds a Watcher delivering validated hashes to sink. ingestDir may be
// empty to disable ingestion-directory scanning.
func New(sink HashSink, log Logger, ingestDir string, opts ...Option) *Watcher {
	if log == nil {
		log = nopLogger{}
	}
	w := &Watcher{
		sink:      sink,
		log:       log,
		watched:   make(map[string]*fileState),
		ingestDir: ingestDir,
		poll:      PollInterval,
		recent:    newCircularSet(recentBufferSize),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddFile registers path for growth-watching, recording its current
// (mtime, size, tail-MD5) baseline so only future appends are delivered.
func (w *Watcher) AddFile(path string) error {
	st, err := statFile(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.watched[path] = st
	w.mu.Unlock()
	return nil
}

// Start launches the polling loop in a background goroutine. Stop ends it.
func (w *Watcher) Start() {
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		for {
			select {
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.pollOnce()
			}
		}
	}()
}

// Stop signals the polling loop to exit and waits for it to finish.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) pollOnce() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.watched))
	for p := range w.watched {
		paths = append(paths, p)
	}
	w.mu.Unlock()
	sort.Strings(paths)

	for _, p := range paths {
		if err := w.checkGrowth(p); err != nil {
			w.log.Warning("watcher: check growth %s: %v", p, err)
		}
	}

	if w.ingestDir != "" {
		if err := w.scanIngestDir(); err != nil {
			w.log.Warning("watcher: scan ingest dir: %v", err)
		}
	}
}

// checkGrowth compares path's current (mtime, size, tail-MD5) against the
// stored baseline; on growth it reads only the appended region.
func (w *Watcher) checkGrowth(path string) error {
	if w.limiter != nil && !w.limiter.Allow() {
		return nil // rate-limited this cycle; try again next poll
	}

	w.mu.Lock()
	prev, known := w.watched[path]
	w.mu.Unlock()
	if !known {
		return nil
	}

	cur, err := statFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if cur.size == prev.size && cur.mtime.Equal(prev.mtime) && cur.tailMD5 == prev.tailMD5 {
		return nil
	}
	if cur.size <= prev.size {
		// Truncated or rewritten in place: re-baseline without
		// re-announcing content this process has already seen.
		w.mu.Lock()
		w.watched[path] = cur
		w.mu.Unlock()
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(prev.size, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	lines := w.validateLines(bufio.NewScanner(f))
	if len(lines) > 0 {
		added := w.sink.AddHashes(lines)
		w.log.Info("watcher: ingested %d new hashes from %s (%d added)", len(lines), path, added)
	}

	w.mu.Lock()
	w.watched[path] = cur
	w.mu.Unlock()
	return nil
}

// validateLines reads non-comment lines from scanner, validates each
// through the hash-format validator, deduplicates against the recent-hash
// buffer, and returns the accepted set. Invalid lines are dropped with a
// warning; they never abort ingestion.
func (w *Watcher) validateLines(scanner *bufio.Scanner) []string {
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var accepted []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		valid, err := validate.HashFormat(line)
		if err != nil {
			w.log.Warning("watcher: invalid hash line dropped: %v", err)
			continue
		}
		if w.recent.seenOrAdd(valid) {
			continue
		}
		accepted = append(accepted, valid)
	}
	return accepted
}

// scanIngestDir processes regular files with a known extension in the
// ingestion directory: stream-validate, hand hashes to the sink, then
// atomically move the source into processed/ with a timestamped name.
func (w *Watcher) scanIngestDir() error {
	entries, err := os.ReadDir(w.ingestDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read ingest dir: %w", err)
	}

	processedDir := filepath.Join(w.ingestDir, "processed")
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !knownIngestExtensions[ext] {
			continue
		}
		path := filepath.Join(w.ingestDir, entry.Name())

		if w.limiter != nil && !w.limiter.Allow() {
			continue // picked up on a later poll
		}

		lines, err := w.readIngestFile(path, ext)
		if err != nil {
			w.log.Warning("watcher: ingest %s: %v", path, err)
			continue
		}

		if len(lines) > 0 {
			added := w.sink.AddHashes(lines)
			w.log.Info("watcher: ingested %d hashes from %s (%d added)", len(lines), path, added)
		}

		if err := w.moveToProcessed(path, processedDir, entry.Name()); err != nil {
			w.log.Warning("watcher: move %s to processed: %v", path, err)
		}
	}
	return nil
}

// readIngestFile validates every line of path, decompressing .7z archives
// first via bodgit/sevenzip (dumped hash lists are routinely shipped
// compressed).
func (w *Watcher) readIngestFile(path, ext string) ([]string, error) {
	if ext == ".7z" {
		return w.readIngestArchive(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return w.validateLines(bufio.NewScanner(f)), nil
}

func (w *Watcher) readIngestArchive(path string) ([]string, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z: %w", err)
	}
	defer r.Close()

	var all []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			w.log.Warning("watcher: open archive entry %s: %v", f.Name, err)
			continue
		}
		lines := w.validateLines(bufio.NewScanner(rc))
		rc.Close()
		all = append(all, lines...)
	}
	return all, nil
}

func (w *Watcher) moveToProcessed(path, processedDir, name string) error {
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return err
	}
	stamped := fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102_150405"), name)
	return os.Rename(path, filepath.Join(processedDir, stamped))
}

func statFile(path string) (*fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	sum, err := tailMD5(path, info.Size())
	if err != nil {
		return nil, err
	}
	return &fileState{mtime: info.ModTime(), size: info.Size(), tailMD5: sum}, nil
}

func tailMD5(path string, size int64) ([16]byte, error) {
	var zero [16]byte
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	start := size - tailSampleSize
	if start < 0 {
		start = 0
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return zero, err
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return zero, err
	}
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// circularSet is a bounded FIFO dedup set, the watcher's recent-hash
// buffer: it prevents re-announcing hashes this process has already
// delivered, independent of the hash index's own cracked/remaining
// bookkeeping.
type circularSet struct {
	mu       sync.Mutex
	set      map[string]struct{}
	order    []string
	capacity int
	head     int
}

func newCircularSet(capacity int) *circularSet {
	return &circularSet{
		set:      make(map[string]struct{}, capacity),
		order:    make([]string, capacity),
		capacity: capacity,
	}
}

// seenOrAdd reports whether value was already present; if not, it is added,
// evicting the oldest entry once the buffer wraps.
func (c *circularSet) seenOrAdd(value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.set[value]; ok {
		return true
	}

	if old := c.order[c.head]; old != "" {
		delete(c.set, old)
	}
	c.order[c.head] = value
	c.set[value] = struct{}{}
	c.head = (c.head + 1) % c.capacity
	return false
}
