// Command hashwrap is the orchestrator's CLI entrypoint: it loads
// configuration, wires the engine's dependencies, dispatches one of the
// five subcommands, and installs the single-process signal handler. Shaped
// after cmd/agent/main.go's loadConfig-then-dispatch structure in the
// teacher.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hackandbackpack/hashwrap/internal/attack"
	"github.com/hackandbackpack/hashwrap/internal/config"
	"github.com/hackandbackpack/hashwrap/internal/engine"
	"github.com/hackandbackpack/hashwrap/internal/errs"
	"github.com/hackandbackpack/hashwrap/internal/identify"
	"github.com/hackandbackpack/hashwrap/internal/ratelimit"
	"github.com/hackandbackpack/hashwrap/internal/sandbox"
	"github.com/hackandbackpack/hashwrap/internal/sessionstore"
	"github.com/hackandbackpack/hashwrap/internal/supervisor"
	"github.com/hackandbackpack/hashwrap/internal/validate"
	"github.com/hackandbackpack/hashwrap/pkg/debug"
)

// debugLogger adapts pkg/debug's package-level functions to the Logger
// interfaces internal/errs, internal/watcher, and internal/engine expect.
type debugLogger struct{}

func (debugLogger) Info(format string, args ...interface{})    { debug.Info(format, args...) }
func (debugLogger) Warning(format string, args ...interface{}) { debug.Warning(format, args...) }
func (debugLogger) Error(format string, args ...interface{})   { debug.Error(format, args...) }

func main() {
	debug.Reinitialize()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	cfg, err := config.Load(reorderFlagsFirst(args))
	if err != nil {
		debug.Error("config: %v", err)
		os.Exit(1)
	}
	if cfg.Debug {
		debug.SetEnabled(true)
	}

	var exitCode int
	switch cmd {
	case "auto":
		exitCode = runAuto(cfg, args)
	case "analyze":
		exitCode = runAnalyze(cfg, args)
	case "resume":
		exitCode = runResume(cfg, args)
	case "add-hashes":
		exitCode = runAddHashes(cfg, args)
	case "status":
		exitCode = runStatus(cfg, args)
	default:
		usage()
		exitCode = 1
	}
	os.Exit(exitCode)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: hashwrap <command> [flags]

commands:
  auto <hash_file> [--session NAME] [--restore] [--workload N] [--status-timer S] [--status-json] [--status-file PATH]
  analyze <hash_file>
  resume <session_id_or_name>
  add-hashes <session_id> <file>
  status`)
}

func buildDeps(cfg *config.Config) (*sessionstore.Store, *sandbox.Sandbox, *errs.Policy, *ratelimit.Bucket, error) {
	store, err := sessionstore.New(cfg.SessionsRoot, cfg.CheckpointInterval)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	extraRoots := []string{cfg.SessionsRoot}
	if cfg.IngestDir != "" {
		extraRoots = append(extraRoots, cfg.IngestDir)
	}
	if cfg.WordlistDir != "" {
		extraRoots = append(extraRoots, cfg.WordlistDir)
	}
	if cfg.RulesDir != "" {
		extraRoots = append(extraRoots, cfg.RulesDir)
	}
	sb, err := sandbox.New(extraRoots, 0)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	policy := errs.NewPolicy(debugLogger{}, cfg.SessionsRoot+"/crashes", 3)
	limiter := ratelimit.New(cfg.RateLimitPerMinute)

	return store, sb, policy, limiter, nil
}

// firstPositional returns the first argument that does not start with '-',
// else "".
func firstPositional(args []string) string {
	for _, a := range args {
		if len(a) > 0 && a[0] != '-' {
			return a
		}
	}
	return ""
}

// reorderFlagsFirst moves every "-flag [value]" pair ahead of the bare
// positional arguments (e.g. <hash_file>, <session_id>) so the standard
// library's flag.FlagSet, which stops parsing at the first non-flag token,
// still sees every flag regardless of where the spec's documented CLI shape
// places the positional. Boolean flags are told apart from value-taking
// ones by checking whether the following token itself looks like a flag.
func reorderFlagsFirst(args []string) []string {
	var flags, positionals []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) > 0 && a[0] == '-' {
			flags = append(flags, a)
			if i+1 < len(args) && (len(args[i+1]) == 0 || args[i+1][0] != '-') {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positionals = append(positionals, a)
	}
	return append(flags, positionals...)
}

func runAuto(cfg *config.Config, args []string) int {
	hashFile := firstPositional(args)
	if hashFile == "" {
		fmt.Fprintln(os.Stderr, "auto: missing <hash_file>")
		return 1
	}

	store, sb, policy, limiter, err := buildDeps(cfg)
	if err != nil {
		debug.Error("auto: %v", err)
		return 1
	}

	opts := engine.Options{
		HashFile:      hashFile,
		SessionName:   cfg.SessionName,
		Restore:       cfg.Restore,
		Workload:      cfg.Workload,
		StatusTimer:   cfg.StatusTimer,
		StatusJSON:    cfg.StatusJSON,
		AttackTimeout: 0,
		IngestDir:     cfg.IngestDir,
		PlannerConfig: attack.PlannerConfig{
			QuickWordlist:   cfg.WordlistDir + "/quick.txt",
			MediumWordlist:  cfg.WordlistDir + "/medium.txt",
			StandardRules:   cfg.RulesDir + "/standard.rule",
			ADRules:         cfg.RulesDir + "/ad.rule",
			WebDefaultsList: cfg.WordlistDir + "/web_defaults.txt",
		},
	}

	eng := engine.New(opts, debugLogger{}, store, sb, policy, limiter, cfg.HashcatBinary)
	eng.Subscribe(func(ev supervisor.StatusEvent) {
		debug.Info("status: attack=%s progress=%.1f%% speed=%.0fH/s recovered=%d/%d",
			ev.AttackName, ev.ProgressPct, ev.TotalSpeed, ev.Recovered, ev.RecoveredTotal)
		if cfg.StatusFile != "" {
			mirrorStatus(cfg.StatusFile, ev)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(eng, cancel)

	if err := eng.CreateSession(ctx); err != nil {
		debug.Error("auto: create session: %v", err)
		return 1
	}

	status, err := eng.Run(ctx)
	if err != nil {
		debug.Error("auto: run: %v", err)
		return 1
	}
	debug.Info("auto: session ended with status %s", status)
	return 0
}

func mirrorStatus(path string, ev supervisor.StatusEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600)
}

func installSignalHandler(eng *engine.Engine, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		eng.Cancel()
		cancel()
	}()
}

func runAnalyze(cfg *config.Config, args []string) int {
	hashFile := firstPositional(args)
	if hashFile == "" {
		fmt.Fprintln(os.Stderr, "analyze: missing <hash_file>")
		return 1
	}

	_, sb, _, _, err := buildDeps(cfg)
	if err != nil {
		debug.Error("analyze: %v", err)
		return 1
	}

	safe, err := sb.Validate(hashFile, true)
	if err != nil {
		debug.Error("analyze: %v", err)
		return 1
	}

	identifier := identify.New()
	analysis, err := identifier.AnalyzeFile(safe, 10)
	if err != nil {
		debug.Error("analyze: %v", err)
		return 1
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		debug.Error("analyze: marshal: %v", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func runResume(cfg *config.Config, args []string) int {
	id := firstPositional(args)
	if id == "" {
		fmt.Fprintln(os.Stderr, "resume: missing <session_id_or_name>")
		return 1
	}

	store, sb, policy, limiter, err := buildDeps(cfg)
	if err != nil {
		debug.Error("resume: %v", err)
		return 1
	}

	if _, err := store.Load(id); err != nil {
		if err == sessionstore.ErrSessionNotFound {
			fmt.Fprintf(os.Stderr, "resume: session %q not found\n", id)
			return 2
		}
		debug.Error("resume: %v", err)
		return 1
	}

	opts := engine.Options{
		Workload:    cfg.Workload,
		StatusTimer: cfg.StatusTimer,
		StatusJSON:  cfg.StatusJSON,
		IngestDir:   cfg.IngestDir,
	}
	eng := engine.New(opts, debugLogger{}, store, sb, policy, limiter, cfg.HashcatBinary)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(eng, cancel)

	if err := eng.Resume(ctx, id); err != nil {
		debug.Error("resume: %v", err)
		return 1
	}

	status, err := eng.Run(ctx)
	if err != nil {
		debug.Error("resume: run: %v", err)
		return 1
	}
	debug.Info("resume: session %s ended with status %s", id, status)
	return 0
}

// runAddHashes validates the hash lines in file and drops them into the
// ingestion directory as a new timestamped batch, the same path a hot-reload
// drop takes in core/hash_watcher.py's HashReloader: it never touches a
// session's hash index directly, since that index is privately owned by
// whichever engine process is running (or will next resume) the session.
// The running engine's file watcher (internal/watcher) picks the batch up on
// its next poll and feeds it to that session's live index.
func runAddHashes(cfg *config.Config, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "add-hashes: usage: add-hashes <session_id> <file>")
		return 1
	}
	sessionID, file := args[0], args[1]

	if cfg.IngestDir == "" {
		fmt.Fprintln(os.Stderr, "add-hashes: no ingestion directory configured (set -ingest-dir or HASHWRAP_INGEST_DIR)")
		return 1
	}

	store, sb, _, _, err := buildDeps(cfg)
	if err != nil {
		debug.Error("add-hashes: %v", err)
		return 1
	}

	if _, err := store.Load(sessionID); err != nil {
		debug.Error("add-hashes: %v", err)
		return 1
	}

	safeFile, err := sb.Validate(file, true)
	if err != nil {
		debug.Error("add-hashes: %v", err)
		return 1
	}

	lines, err := readLines(safeFile)
	if err != nil {
		debug.Error("add-hashes: %v", err)
		return 1
	}

	var accepted []string
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		valid, err := validate.HashFormat(trimmed)
		if err != nil {
			debug.Warning("add-hashes: dropping invalid line: %v", err)
			continue
		}
		accepted = append(accepted, valid)
	}
	if len(accepted) == 0 {
		debug.Info("add-hashes: no valid hash lines found in %s", file)
		return 0
	}

	if err := os.MkdirAll(cfg.IngestDir, 0o755); err != nil {
		debug.Error("add-hashes: create ingest dir: %v", err)
		return 1
	}
	dropPath := filepath.Join(cfg.IngestDir, fmt.Sprintf("addhashes_%s_%s.txt", sessionID, time.Now().UTC().Format("20060102_150405")))
	if err := os.WriteFile(dropPath, []byte(strings.Join(accepted, "\n")+"\n"), 0o600); err != nil {
		debug.Error("add-hashes: write ingest batch: %v", err)
		return 1
	}

	debug.Info("add-hashes: dropped %d validated hashes into %s for session %s's watcher to pick up", len(accepted), dropPath, sessionID)
	return 0
}

func runStatus(cfg *config.Config, args []string) int {
	store, _, _, _, err := buildDeps(cfg)
	if err != nil {
		debug.Error("status: %v", err)
		return 1
	}
	ids, err := store.List()
	if err != nil {
		debug.Error("status: %v", err)
		return 1
	}
	for _, id := range ids {
		rec, err := store.Load(id)
		if err != nil {
			continue
		}
		fmt.Printf("%s\t%s\tcracked=%d/%d\n", rec.ID, rec.Status, rec.Statistics.CrackedCount, rec.Statistics.TotalHashes)
	}
	return 0
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines, nil
}

