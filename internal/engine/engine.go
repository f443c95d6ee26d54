// Package engine wires the hash identifier, streaming hash index, attack
// queue and planner, cracker supervisor, session store, file watcher, error
// policy, and rate limiter into the orchestrator's main loop, grounded on
// core/orchestrator.py's run loop and on the teacher's connection-management
// shape in agent/internal/agent/connection.go (one long-lived loop owning a
// child process, subscribers, and a clean shutdown path).
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hackandbackpack/hashwrap/internal/attack"
	"github.com/hackandbackpack/hashwrap/internal/cmdbuilder"
	"github.com/hackandbackpack/hashwrap/internal/errs"
	"github.com/hackandbackpack/hashwrap/internal/hashindex"
	"github.com/hackandbackpack/hashwrap/internal/identify"
	"github.com/hackandbackpack/hashwrap/internal/ratelimit"
	"github.com/hackandbackpack/hashwrap/internal/sandbox"
	"github.com/hackandbackpack/hashwrap/internal/session"
	"github.com/hackandbackpack/hashwrap/internal/sessionstore"
	"github.com/hackandbackpack/hashwrap/internal/supervisor"
	"github.com/hackandbackpack/hashwrap/internal/validate"
	"github.com/hackandbackpack/hashwrap/internal/watcher"
)

// Logger is the minimal logging surface the engine needs; pkg/debug
// satisfies it via the package-level adapter in cmd/hashwrap.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Options configures a run of the engine loop.
type Options struct {
	HashFile        string
	SessionName     string // explicit name; empty generates a timestamp id
	Restore         bool
	Workload        int
	StatusTimer     int
	StatusJSON      bool
	AttackTimeout   time.Duration // per-attack wall-clock bound; 0 disables
	IngestDir       string
	PlannerConfig   attack.PlannerConfig
	PasswordPolicy  *attack.PasswordPolicy
	Resources       attack.ResourceSnapshot
}

// Engine owns one session's worth of orchestration state.
type Engine struct {
	cfg      Options
	log      Logger
	store    *sessionstore.Store
	sandbox  *sandbox.Sandbox
	builder  *cmdbuilder.Builder
	super    *supervisor.Supervisor
	policy   *errs.Policy
	limiter  *ratelimit.Bucket
	queue    *attack.Queue
	idx      *hashindex.Index
	watch    *watcher.Watcher
	rec      *session.Record
	hashcat  string

	dominantMode int

	cancelCh chan struct{}
}

// New constructs an Engine; it does not yet create or resume a session.
func New(cfg Options, log Logger, store *sessionstore.Store, sb *sandbox.Sandbox, policy *errs.Policy, limiter *ratelimit.Bucket, hashcatBinary string) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		store:    store,
		sandbox:  sb,
		builder:  cmdbuilder.New(sb),
		super:    supervisor.New(),
		policy:   policy,
		limiter:  limiter,
		queue:    attack.NewQueue(),
		hashcat:  hashcatBinary,
		cancelCh: make(chan struct{}),
	}
}

// Cancel is idempotent; it signals the single-process SIGINT/SIGTERM path.
func (e *Engine) Cancel() {
	select {
	case <-e.cancelCh:
	default:
		close(e.cancelCh)
	}
}

// newSessionID produces the UTC timestamp-derived auto id, matching
// validate.IsAutoSessionID's grammar.
func newSessionID() string {
	return time.Now().UTC().Format("20060102_150405")
}

// CreateSession builds a fresh session, analyzes the hash file, plans
// attacks, and checkpoints the initial state.
func (e *Engine) CreateSession(ctx context.Context) error {
	id := e.cfg.SessionName
	if id == "" {
		id = newSessionID()
	} else if err := validate.SessionName(id); err != nil {
		return err
	}

	safeHashFile, err := e.sandbox.Validate(e.cfg.HashFile, true)
	if err != nil {
		return err
	}

	identifier := identify.New()
	analysis, err := identifier.AnalyzeFile(safeHashFile, 10)
	if err != nil {
		return fmt.Errorf("engine: analyze hash file: %w", err)
	}

	plan := attack.Plan(analysis, e.cfg.Resources, e.cfg.PasswordPolicy, e.cfg.PlannerConfig)
	dominantMode := dominantHashMode(analysis)
	e.dominantMode = dominantMode
	for _, a := range plan {
		if a.HashMode == nil {
			mode := dominantMode
			a.HashMode = &mode
		}
		e.queue.Push(a)
	}

	potfile := e.store.PotfilePath(id)
	idx, err := hashindex.New(safeHashFile, potfile, hashindex.Options{})
	if err != nil {
		return fmt.Errorf("engine: build hash index: %w", err)
	}
	e.idx = idx

	e.rec = &session.Record{
		ID:               id,
		Status:           session.StatusCreated,
		StartTime:        time.Now().UTC(),
		HashFilePath:     safeHashFile,
		PotfilePath:      potfile,
		Statistics: session.Statistics{
			TotalHashes:   idx.TotalCount(),
			RemainingHash: idx.RemainingCount(),
		},
		HotReloadEnabled: e.cfg.IngestDir != "",
	}
	e.rec.PendingAttacks = snapshotPending(e.queue)

	if err := e.store.Checkpoint(e.rec, true); err != nil {
		return fmt.Errorf("engine: initial checkpoint: %w", err)
	}

	e.startWatcher()
	return nil
}

// Resume reloads a previously checkpointed session: validates the original
// hash file still exists, re-instantiates the index from the existing
// potfile, reconstructs the queue from pending-attack snapshots, and sets
// status to Running. If a native restore file exists, the first attack run
// after resume carries the --restore flag.
func (e *Engine) Resume(ctx context.Context, id string) error {
	rec, err := e.store.Load(id)
	if err != nil {
		return err
	}

	if _, err := os.Stat(rec.HashFilePath); err != nil {
		return errs.FileNotFound("engine.Resume", rec.HashFilePath, err)
	}

	idx, err := hashindex.New(rec.HashFilePath, rec.PotfilePath, hashindex.Options{})
	if err != nil {
		return fmt.Errorf("engine: rebuild hash index: %w", err)
	}
	e.idx = idx

	for _, snap := range rec.PendingAttacks {
		e.queue.Push(snap.ToAttack())
	}
	if rec.CurrentAttack != nil {
		e.queue.Push(rec.CurrentAttack.ToAttack())
		rec.CurrentAttack = nil
	}

	rec.Status = session.StatusRunning
	rec.Statistics.TotalHashes = idx.TotalCount()
	rec.Statistics.RemainingHash = idx.RemainingCount()
	rec.PendingAttacks = snapshotPending(e.queue)
	e.rec = rec

	if e.store.HasRestoreFile(id) {
		e.cfg.Restore = true
	}

	if err := e.store.Checkpoint(e.rec, true); err != nil {
		return fmt.Errorf("engine: resume checkpoint: %w", err)
	}

	e.startWatcher()
	return nil
}

func (e *Engine) startWatcher() {
	sink := e.idx
	e.watch = watcher.New(sink, watcherLoggerAdapter{e.log}, e.cfg.IngestDir, watcher.WithRateLimiter(e.limiter))
	e.watch.Start()
}

// watcherLoggerAdapter narrows Engine's Logger to watcher.Logger.
type watcherLoggerAdapter struct{ log Logger }

func (w watcherLoggerAdapter) Info(format string, args ...interface{})    { w.log.Info(format, args...) }
func (w watcherLoggerAdapter) Warning(format string, args ...interface{}) { w.log.Warning(format, args...) }

// Run drives the main loop until the queue drains, all hashes crack, or the
// cancellation signal fires. It returns the terminal session status.
func (e *Engine) Run(ctx context.Context) (session.Status, error) {
	e.rec.Status = session.StatusRunning
	_ = e.store.Checkpoint(e.rec, true)

	restorePending := e.cfg.Restore

	for {
		select {
		case <-e.cancelCh:
			return e.pauseAndCheckpoint()
		default:
		}

		if drainNewHashesSignal(e.idx) {
			e.InjectHotReload(e.dominantMode)
			e.log.Info("engine: hot-reloaded hashes detected, injected quick-win attacks ahead of plan")
			e.rec.PendingAttacks = snapshotPending(e.queue)
		}

		a := e.queue.Pop()
		if a == nil {
			break
		}

		snap := session.ToSnapshot(a)
		e.rec.CurrentAttack = &snap
		e.rec.PendingAttacks = snapshotPending(e.queue)
		if err := e.store.Checkpoint(e.rec, true); err != nil {
			e.log.Warning("engine: checkpoint before attack %s: %v", a.Name, err)
		}

		remainingFile, err := e.idx.MaterializeRemaining()
		if err != nil {
			e.handleFatal(err, "engine.materialize_remaining")
			return session.StatusError, err
		}

		argv, err := e.builder.Build(a, remainingFile, cmdbuilder.Params{
			Binary:          e.hashcat,
			Potfile:         e.rec.PotfilePath,
			Session:         e.rec.ID,
			Restore:         restorePending,
			WorkloadProfile: e.cfg.Workload,
			StatusTimer:     e.cfg.StatusTimer,
			StatusJSON:      e.cfg.StatusJSON,
		})
		restorePending = false
		if err != nil {
			os.Remove(remainingFile)
			e.recordFailedAttack(a, err)
			continue
		}

		outcome, err := e.super.Run(ctx, a, argv, e.rec.ID, e.idx, e.cfg.AttackTimeout, e.cancelCh)
		os.Remove(remainingFile)
		if err != nil {
			e.recordFailedAttack(a, err)
			continue
		}

		e.recordCompletedAttack(a, outcome)

		if outcome.Disposition == supervisor.DispositionCancelled {
			return e.pauseAndCheckpoint()
		}

		if !e.idx.ShouldContinue() {
			break
		}
	}

	return e.finish()
}

// drainNewHashesSignal non-blockingly consumes any pending "new hashes"
// notification and reports whether one was waiting; the index's own counters
// already reflect the addition, this only exists so the loop can react to the
// signal's presence by injecting hot-reload attacks.
func drainNewHashesSignal(idx *hashindex.Index) bool {
	select {
	case <-idx.NewHashesSignal():
		return true
	default:
		return false
	}
}

func (e *Engine) recordCompletedAttack(a *attack.Attack, outcome supervisor.RunOutcome) {
	a.SuccessProbability = attack.UpdateSuccessRate(a.SuccessProbability, successObserved(outcome))

	e.rec.CompletedAttacks = append(e.rec.CompletedAttacks, session.CompletedAttack{
		Attack:       session.ToSnapshot(a),
		CrackedCount: outcome.Result.CrackedCount,
		Duration:     outcome.Result.Duration,
		ExitCode:     outcome.Result.ExitCode,
	})
	e.rec.CurrentAttack = nil
	e.rec.PendingAttacks = snapshotPending(e.queue)
	e.rec.Statistics.CrackedCount = e.idx.CrackedCount()
	e.rec.Statistics.RemainingHash = e.idx.RemainingCount()

	if err := e.store.Checkpoint(e.rec, true); err != nil {
		e.log.Warning("engine: checkpoint after attack %s: %v", a.Name, err)
	}
}

func (e *Engine) recordFailedAttack(a *attack.Attack, cause error) {
	e.log.Error("engine: attack %s failed: %v", a.Name, cause)
	e.rec.CompletedAttacks = append(e.rec.CompletedAttacks, session.CompletedAttack{
		Attack:   session.ToSnapshot(a),
		ExitCode: -1,
	})
	e.rec.CurrentAttack = nil
	e.rec.PendingAttacks = snapshotPending(e.queue)
	_ = e.store.Checkpoint(e.rec, true)
}

func successObserved(outcome supervisor.RunOutcome) float64 {
	if outcome.Result.CrackedCount > 0 {
		return 1.0
	}
	return 0.0
}

func (e *Engine) pauseAndCheckpoint() (session.Status, error) {
	e.rec.Status = session.StatusPaused
	e.rec.CurrentAttack = nil
	e.rec.PendingAttacks = snapshotPending(e.queue)
	if err := e.store.Checkpoint(e.rec, true); err != nil {
		e.log.Error("engine: forced pause checkpoint failed: %v", err)
		return session.StatusError, err
	}
	return session.StatusPaused, nil
}

func (e *Engine) finish() (session.Status, error) {
	if e.watch != nil {
		e.watch.Stop()
	}
	status := session.StatusCompleted
	if e.idx.ShouldContinue() {
		status = session.StatusAborted
	}
	e.rec.Status = status
	e.rec.PendingAttacks = snapshotPending(e.queue)
	e.rec.RuntimeSeconds = time.Since(e.rec.StartTime).Seconds()
	if err := e.store.Checkpoint(e.rec, true); err != nil {
		e.log.Error("engine: final checkpoint failed: %v", err)
	}
	if err := e.idx.Shutdown(); err != nil {
		e.log.Warning("engine: index shutdown: %v", err)
	}
	return status, nil
}

func (e *Engine) handleFatal(cause error, operation string) {
	e.rec.Status = session.StatusError
	e.rec.PendingAttacks = snapshotPending(e.queue)
	_ = e.store.Checkpoint(e.rec, true)
	if e.policy != nil {
		wrapped := errs.New(errs.KindUnknown, errs.SeverityFatal, operation, "engine_fatal", nil, cause)
		e.policy.Handle(context.Background(), wrapped)
	}
}

// dominantHashMode returns the mode of the most frequent detected type, or 0
// if the analysis found nothing recognizable.
func dominantHashMode(a *identify.Analysis) int {
	best := 0
	bestCount := -1
	for _, tc := range a.DetectedTypes {
		if tc.Count > bestCount {
			bestCount = tc.Count
			best = tc.Mode
		}
	}
	return best
}

// snapshotPending re-derives the pending-attacks list from the queue's
// current contents. It must be called fresh before every checkpoint rather
// than once at session creation: as attacks are popped and completed,
// rec.PendingAttacks would otherwise keep listing them alongside
// rec.CompletedAttacks, violating pending/completed disjointness.
func snapshotPending(q *attack.Queue) []session.AttackSnapshot {
	var out []session.AttackSnapshot
	for _, a := range q.Snapshot() {
		out = append(out, session.ToSnapshot(a))
	}
	return out
}

// InjectHotReload pushes the two hot-reload quick attacks onto the queue,
// called when the watcher's sink reports newly ingested hashes mid-run and
// the engine wants an immediate targeted pass ahead of the remaining plan.
func (e *Engine) InjectHotReload(dominantMode int) {
	for _, a := range attack.InjectHotReloadAttacks(dominantMode, e.cfg.PlannerConfig.QuickWordlist) {
		e.queue.Push(a)
	}
}

// Subscribe exposes the supervisor's status-event subscription for external
// consumers (the CLI's --status-file mirror, a future network transport).
func (e *Engine) Subscribe(sub supervisor.Subscriber) {
	e.super.Subscribe(sub)
}

// SessionDir exposes the active session's directory for callers that need
// to locate the potfile or restore file directly.
func (e *Engine) SessionDir() string {
	if e.rec == nil {
		return ""
	}
	return e.store.Dir(e.rec.ID)
}

// Record returns the engine's current in-memory session record.
func (e *Engine) Record() *session.Record { return e.rec }
