package errs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	rdebug "runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	gopsutilmem "github.com/shirou/gopsutil/mem"
)

// Logger is the minimal logging surface the policy needs. The concrete
// implementation wired at construction time is pkg/debug; tests supply a
// recording fake.
type Logger interface {
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// AlternativePathResolver supplies fallback paths for FileAccess recovery.
type AlternativePathResolver func(original string) []string

// CleanupFunc performs process-wide teardown before a fatal error terminates
// the engine (stop watchers, secure-delete temp files, final checkpoint).
type CleanupFunc func()

// Policy applies the error-kind/severity classification rules and the bounded
// recovery strategies described by the engine's error-handling design. It
// replaces the source's exception-based control flow with explicit results.
type Policy struct {
	mu           sync.Mutex
	log          Logger
	crashDir     string
	maxRetries   int
	history      []*Error
	historyLimit int
	altPaths     AlternativePathResolver
	cleanups     []CleanupFunc
	notify       func(message string)
}

// NewPolicy builds a Policy. crashDir is where fatal crash reports are
// written; maxRetries bounds timeout/network retry strategies (default 3
// when zero).
func NewPolicy(log Logger, crashDir string, maxRetries int) *Policy {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Policy{
		log:          log,
		crashDir:     crashDir,
		maxRetries:   maxRetries,
		historyLimit: 10,
	}
}

// RegisterCleanup adds a function invoked, in registration order, before a
// fatal error terminates the engine.
func (p *Policy) RegisterCleanup(fn CleanupFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanups = append(p.cleanups, fn)
}

// SetAlternativePathResolver registers the FileAccess recovery path source.
func (p *Policy) SetAlternativePathResolver(fn AlternativePathResolver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.altPaths = fn
}

// SetNotifier registers a callback invoked for Degraded-severity errors.
func (p *Policy) SetNotifier(fn func(message string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = fn
}

// record appends to the bounded history used by crash reports.
func (p *Policy) record(e *Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, e)
	if len(p.history) > p.historyLimit {
		p.history = p.history[len(p.history)-p.historyLimit:]
	}
}

// Handle applies the policy to e: it records the error, applies the matching
// recovery strategy at most once, surfaces per the severity's rule, and for
// Fatal errors runs cleanup and writes a crash report. It returns true if the
// caller's operation was recovered and may continue.
func (p *Policy) Handle(ctx context.Context, e *Error) (recovered bool) {
	p.record(e)
	corrID := uuid.New().String()
	e = e.WithContext("correlation_id", corrID)

	switch e.Severity {
	case SeverityRecoverable:
		recovered = p.recover(ctx, e)
		if p.log != nil {
			p.log.Warning("recoverable error in %s (%s) corr=%s recovered=%v", e.Operation, e.Code, corrID, recovered)
		}
		return recovered
	case SeverityDegraded:
		recovered = p.recover(ctx, e)
		if p.notify != nil {
			p.notify(fmt.Sprintf("degraded: %s", e.Error()))
		}
		if p.log != nil {
			p.log.Warning("degraded error in %s (%s) corr=%s", e.Operation, e.Code, corrID)
		}
		return true
	case SeverityCritical:
		if p.log != nil {
			p.log.Error("critical error in %s (%s) corr=%s: %v", e.Operation, e.Code, corrID, e.Cause)
		}
		return false
	default: // SeverityFatal
		if p.log != nil {
			p.log.Error("fatal error in %s (%s) corr=%s: %v", e.Operation, e.Code, corrID, e.Cause)
		}
		p.runCleanups()
		p.writeCrashReport(e, corrID)
		return false
	}
}

// recover applies the recovery strategy matching e.Kind. It is applied at
// most once per call (no internal retry loop beyond what each strategy
// itself bounds by p.maxRetries).
func (p *Policy) recover(ctx context.Context, e *Error) bool {
	switch e.Kind {
	case KindFileAccess:
		return p.recoverFileAccess(e)
	case KindProcess:
		return p.recoverProcessTimeout(ctx, e)
	case KindResource:
		return p.recoverResource(e)
	case KindNetwork:
		return p.recoverNetwork(ctx, e)
	case KindValidation:
		return p.recoverValidation(e)
	default:
		return false
	}
}

func (p *Policy) recoverFileAccess(e *Error) bool {
	original := e.Context["path"]
	if p.altPaths != nil {
		for _, alt := range p.altPaths(original) {
			if _, err := os.Stat(alt); err == nil {
				return true
			}
		}
	}
	if e.Code == "permission_denied" {
		tmp := os.TempDir()
		if _, err := os.Stat(tmp); err == nil {
			return true
		}
	}
	return false
}

func (p *Policy) recoverProcessTimeout(ctx context.Context, e *Error) bool {
	attempt := 0
	if v, ok := e.Context["attempt"]; ok {
		fmt.Sscanf(v, "%d", &attempt)
	}
	return attempt < p.maxRetries
}

func (p *Policy) recoverResource(e *Error) bool {
	rdebug.FreeOSMemory()
	if v, err := gopsutilmem.VirtualMemory(); err == nil {
		if v.UsedPercent > 90 {
			return false // advise batch-size halving / CPU fallback upstream; not silently recovered
		}
	}
	return e.Severity != SeverityFatal
}

func (p *Policy) recoverNetwork(ctx context.Context, e *Error) bool {
	attempt := 0
	if v, ok := e.Context["attempt"]; ok {
		fmt.Sscanf(v, "%d", &attempt)
	}
	if attempt >= p.maxRetries {
		return false // falls back to offline-mode upstream
	}
	backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
	select {
	case <-time.After(backoff):
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Policy) recoverValidation(e *Error) bool {
	_, hasDefault := e.Context["default"]
	return hasDefault
}

func (p *Policy) runCleanups() {
	p.mu.Lock()
	cleanups := append([]CleanupFunc(nil), p.cleanups...)
	p.mu.Unlock()
	for _, fn := range cleanups {
		func() {
			defer func() { recover() }()
			fn()
		}()
	}
}

type crashReport struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Operation string            `json:"operation"`
	Error     string            `json:"error"`
	Severity  string            `json:"severity"`
	Category  string            `json:"category"`
	Context   map[string]string `json:"context"`
	History   []string          `json:"history"`
	Stack     string            `json:"stack"`
}

func (p *Policy) writeCrashReport(e *Error, corrID string) {
	if p.crashDir == "" {
		return
	}
	if err := os.MkdirAll(p.crashDir, 0o700); err != nil {
		return
	}

	p.mu.Lock()
	hist := make([]string, 0, len(p.history))
	for _, h := range p.history {
		hist = append(hist, h.Error())
	}
	p.mu.Unlock()

	report := crashReport{
		ID:        corrID,
		Timestamp: time.Now().UTC(),
		Operation: e.Operation,
		Error:     e.Error(),
		Severity:  e.Severity.String(),
		Category:  e.Kind.String(),
		Context:   e.Context,
		History:   hist,
		Stack:     string(rdebug.Stack()),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(p.crashDir, fmt.Sprintf("crash_%s.json", corrID))
	_ = os.WriteFile(path, data, 0o600)
}
