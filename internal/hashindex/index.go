// Package hashindex implements the engine's streaming hash index: the set
// of target hashes, the subset already cracked, and cheap "what remains"
// materialization. Grounded on core/hash_manager.py and
// core/streaming_hash_processor.py, with a bloom-filter pre-filter (§ domain
// stack) added for the streaming path, the same way the teacher's backend
// uses bloom.NewWithEstimates as a duplicate pre-check never trusted alone.
package hashindex

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// StreamingThreshold is the source-file size above which the index enters
// streaming mode instead of loading the full target set into memory.
const StreamingThreshold = 50 * 1024 * 1024

// StreamingSampleCap bounds how many entries are kept in memory for
// statistics when streaming.
const StreamingSampleCap = 100_000

// CrackRecord is one cracked hash, with the attack credited for it.
type CrackRecord struct {
	Plaintext string
	CrackedAt time.Time
	Attack    string
}

// ReloadResult is returned by Reload.
type ReloadResult struct {
	NewlyCracked []Crack
	TotalCracked int
	Remaining    int
	AllCracked   bool
}

// Index is the engine's hash set manager. All exported methods are
// thread-safe; internal unexported helpers assume the caller already holds
// mu, which is how this module avoids needing a literal reentrant mutex.
type Index struct {
	mu sync.Mutex

	hashFile string
	potfile  string

	streaming      bool
	totalHashCount int
	originalSample map[string]struct{} // full set when !streaming, bounded sample when streaming
	bloomFilter    *bloom.BloomFilter   // only populated in streaming mode

	cracked             map[string]*CrackRecord
	attackEffectiveness map[string]int

	tail *TailReader

	newHashesCh chan int

	tempFiles []string

	currentAttack string
}

// Options customizes index construction.
type Options struct {
	// ForceStreaming overrides the size-based threshold.
	ForceStreaming bool
	// StreamingThresholdOverride, if nonzero, replaces StreamingThreshold.
	StreamingThresholdOverride int64
}

// New constructs an Index over hashFile/potfile and loads initial state:
// the target set (or a bounded sample, in streaming mode) and any
// already-cracked entries from an existing potfile.
func New(hashFile, potfile string, opts Options) (*Index, error) {
	idx := &Index{
		hashFile:            hashFile,
		potfile:             potfile,
		originalSample:      make(map[string]struct{}),
		cracked:             make(map[string]*CrackRecord),
		attackEffectiveness: make(map[string]int),
		tail:                NewTailReader(potfile),
		newHashesCh:         make(chan int, 256),
	}

	threshold := int64(StreamingThreshold)
	if opts.StreamingThresholdOverride > 0 {
		threshold = opts.StreamingThresholdOverride
	}

	info, err := os.Stat(hashFile)
	if err != nil {
		return nil, fmt.Errorf("hashindex: stat hash file: %w", err)
	}

	if opts.ForceStreaming || info.Size() > threshold {
		if err := idx.loadStreaming(); err != nil {
			return nil, err
		}
	} else if err := idx.loadTraditional(); err != nil {
		return nil, err
	}

	if err := idx.loadInitialPotfile(); err != nil {
		return nil, err
	}

	return idx, nil
}

func (idx *Index) loadTraditional() error {
	f, err := os.Open(idx.hashFile)
	if err != nil {
		return fmt.Errorf("hashindex: open hash file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx.originalSample[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("hashindex: scan hash file: %w", err)
	}
	idx.totalHashCount = len(idx.originalSample)
	idx.streaming = false
	return nil
}

func (idx *Index) loadStreaming() error {
	idx.streaming = true

	// Single pass: count every line and build the bloom filter so that
	// later potfile reloads can cheaply reject entries that cannot
	// possibly be in this target set.
	f, err := os.Open(idx.hashFile)
	if err != nil {
		return fmt.Errorf("hashindex: open hash file: %w", err)
	}
	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if scanner.Text() != "" {
			count++
		}
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("hashindex: count hash file: %w", err)
	}
	idx.totalHashCount = count
	idx.bloomFilter = bloom.NewWithEstimates(uint(count+1), 0.01)

	f, err = os.Open(idx.hashFile)
	if err != nil {
		return fmt.Errorf("hashindex: reopen hash file: %w", err)
	}
	defer f.Close()
	scanner = bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx.bloomFilter.AddString(line)
		if len(idx.originalSample) < StreamingSampleCap {
			idx.originalSample[line] = struct{}{}
		}
	}
	return scanner.Err()
}

func (idx *Index) loadInitialPotfile() error {
	if _, err := os.Stat(idx.potfile); os.IsNotExist(err) {
		return nil
	}
	cracks, err := idx.tail.NewCracksSinceLastCall()
	if err != nil {
		return err
	}
	for _, c := range cracks {
		idx.recordIfOurs(c, "")
	}
	return nil
}

// recordIfOurs records hash as cracked only when it plausibly belongs to
// this index's target set (preserving the cracked ⊆ original invariant):
// exact membership in non-streaming mode, bloom-filter membership in
// streaming mode. A bloom false positive can only ever cause an entry that
// is not actually in the hash file to be marked cracked, which never
// affects materialize_remaining's correctness since that always re-filters
// against the real file contents.
func (idx *Index) recordIfOurs(c Crack, attack string) bool {
	if _, already := idx.cracked[c.Hash]; already {
		return false
	}
	belongs := false
	if idx.streaming {
		belongs = idx.bloomFilter.TestString(c.Hash)
	} else {
		_, belongs = idx.originalSample[c.Hash]
	}
	if !belongs {
		return false
	}
	idx.cracked[c.Hash] = &CrackRecord{Plaintext: c.Plaintext, CrackedAt: time.Now(), Attack: attack}
	if attack != "" {
		idx.attackEffectiveness[attack]++
	}
	return true
}

// SetCurrentAttack records which attack name newly discovered cracks should
// be credited to until changed again.
func (idx *Index) SetCurrentAttack(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.currentAttack = name
}

// Reload reads the potfile's newly appended records (via the tail reader)
// and folds any that belong to this index's target set into the cracked
// set, crediting the current attack.
func (idx *Index) Reload() (*ReloadResult, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cracks, err := idx.tail.NewCracksSinceLastCall()
	if err != nil {
		return nil, err
	}

	var newly []Crack
	for _, c := range cracks {
		if idx.recordIfOurs(c, idx.currentAttack) {
			newly = append(newly, c)
		}
	}

	remaining := idx.totalHashCount - len(idx.cracked)
	if remaining < 0 {
		remaining = 0
	}

	return &ReloadResult{
		NewlyCracked: newly,
		TotalCracked: len(idx.cracked),
		Remaining:    remaining,
		AllCracked:   remaining == 0,
	}, nil
}

// AddHashes ingests new candidate hash lines (from the file watcher or the
// add-hashes command), skipping lines already in the in-memory original set
// (in streaming mode only its bounded sample is checked), and broadcasting
// the count on the
// new-hashes signal channel. Readers must treat a full channel (a missed
// signal) as "at least one" rather than blocking.
func (idx *Index) AddHashes(lines []string) int {
	idx.mu.Lock()
	added := 0
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, exists := idx.originalSample[line]; exists {
			continue
		}
		if idx.streaming {
			// A streaming index cannot cheaply know whether an
			// arbitrary new line was already counted; hot-reloaded
			// hashes are always genuinely new lines appended to the
			// watched file, so they are accepted unconditionally and
			// folded into the bloom filter and sample.
			idx.bloomFilter.AddString(line)
		}
		if len(idx.originalSample) < StreamingSampleCap || !idx.streaming {
			idx.originalSample[line] = struct{}{}
		}
		idx.totalHashCount++
		added++
	}
	idx.mu.Unlock()

	if added > 0 {
		select {
		case idx.newHashesCh <- added:
		default:
			// Channel full: a prior signal is still pending. The
			// reader already knows "at least one" batch is waiting,
			// so dropping this one is safe per the at-least-one
			// missed-signal contract.
		}
	}
	return added
}

// NewHashesSignal exposes the bounded channel the Engine Loop drains
// non-blockingly to learn that new hashes are available.
func (idx *Index) NewHashesSignal() <-chan int {
	return idx.newHashesCh
}

// RemainingCount returns the current size of original \ cracked.
func (idx *Index) RemainingCount() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	remaining := idx.totalHashCount - len(idx.cracked)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TotalCount returns the total number of target hashes known to the index.
func (idx *Index) TotalCount() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.totalHashCount
}

// CrackedCount returns the number of hashes cracked so far.
func (idx *Index) CrackedCount() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.cracked)
}

// ShouldContinue reports whether any hashes remain.
func (idx *Index) ShouldContinue() bool {
	return idx.RemainingCount() > 0
}

// AttackEffectiveness returns a copy of the per-attack crack counts.
func (idx *Index) AttackEffectiveness() map[string]int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make(map[string]int, len(idx.attackEffectiveness))
	for k, v := range idx.attackEffectiveness {
		out[k] = v
	}
	return out
}

// MaterializeRemaining writes a fresh, owner-only-permission file containing
// exactly the uncracked hashes and returns its path. The file is tracked for
// secure cleanup by Shutdown. In streaming mode the source file is
// re-streamed and filtered against the authoritative cracked-key set rather
// than iterating an in-memory set.
func (idx *Index) MaterializeRemaining() (string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	f, err := os.CreateTemp("", "hashwrap_remaining_*.txt")
	if err != nil {
		return "", fmt.Errorf("hashindex: create temp file: %w", err)
	}
	tmpPath := f.Name()

	writeErr := func() error {
		w := bufio.NewWriter(f)
		if idx.streaming {
			src, err := os.Open(idx.hashFile)
			if err != nil {
				return err
			}
			defer src.Close()
			scanner := bufio.NewScanner(src)
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				if _, cracked := idx.cracked[line]; cracked {
					continue
				}
				if _, err := w.WriteString(line + "\n"); err != nil {
					return err
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
		} else {
			for line := range idx.originalSample {
				if _, cracked := idx.cracked[line]; cracked {
					continue
				}
				if _, err := w.WriteString(line + "\n"); err != nil {
					return err
				}
			}
		}
		return w.Flush()
	}()

	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("hashindex: write remaining file: %w", writeErr)
	}

	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("hashindex: chmod remaining file: %w", err)
	}

	idx.tempFiles = append(idx.tempFiles, tmpPath)
	return tmpPath, nil
}

// Shutdown secure-deletes every materialized remaining-hashes file: files
// smaller than 1MB are overwritten with random bytes before being unlinked,
// matching hash_manager.py's cleanup().
func (idx *Index) Shutdown() error {
	idx.mu.Lock()
	files := idx.tempFiles
	idx.tempFiles = nil
	idx.mu.Unlock()

	var firstErr error
	for _, path := range files {
		if err := secureDelete(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

const secureOverwriteSizeLimit = 1 * 1024 * 1024

func secureDelete(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if info.Size() < secureOverwriteSizeLimit {
		random := make([]byte, info.Size())
		if _, err := rand.Read(random); err == nil {
			_ = os.WriteFile(path, random, 0o600)
		}
	}

	return os.Remove(path)
}

// SessionDir is a convenience used by callers constructing per-session
// potfile paths consistently with the session store's directory layout.
func SessionDir(sessionsRoot, sessionID string) string {
	return filepath.Join(sessionsRoot, "session_"+sessionID)
}
