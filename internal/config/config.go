// Package config loads the engine's runtime configuration from command-line
// flags, environment variables, and an optional .env file, in that order of
// precedence, following the layering cmd/agent/main.go's loadConfig used in
// the teacher. Config is built once by the CLI entrypoint and threaded
// explicitly to every component that needs it (design note 9.3): there is no
// package-level config singleton.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the engine's full runtime configuration.
type Config struct {
	// SessionsRoot is the directory under which session_<id>/ subdirectories
	// are created.
	SessionsRoot string
	// IngestDir is the directory the file watcher scans for hot-reload
	// drops. Empty disables ingestion-directory scanning.
	IngestDir string
	// HashcatBinary is the path (or PATH-resolved name) of the hashcat
	// executable the supervisor invokes.
	HashcatBinary string
	// Workload is hashcat's -w value (1-4); 0 (or any value outside 1-4)
	// makes the command builder pass -w 3.
	Workload int
	// StatusTimer is the interval, in seconds, hashcat is asked to emit
	// --status-timer updates at.
	StatusTimer int
	// StatusJSON requests hashcat's --status-json output format.
	StatusJSON bool
	// StatusFile, if set, mirrors status updates to this path for external
	// consumption instead of (or in addition to) stdout.
	StatusFile string
	// CheckpointInterval rate-limits non-forced session checkpoints.
	CheckpointInterval time.Duration
	// WatcherPollInterval is loaded and defaulted here, but it is not passed
	// to the engine: the file watcher polls at watcher.PollInterval.
	WatcherPollInterval time.Duration
	// RateLimitPerMinute bounds hot-reload ingestion and status-query
	// throughput; 0 uses ratelimit.DefaultRate.
	RateLimitPerMinute int
	// WordlistDir and RulesDir scope the sandbox's allowed roots for
	// attack-plan inputs.
	WordlistDir string
	RulesDir    string
	// MaxMemoryPercent is loaded and defaulted here, but it is not passed to
	// the error policy, whose resource recovery uses a fixed 90% threshold.
	MaxMemoryPercent float64
	// Debug enables verbose logging.
	Debug bool
	// SessionName, if set, names the session auto creates instead of an
	// auto-generated timestamp id; Restore asks the next launched attack to
	// carry hashcat's --restore flag.
	SessionName string
	Restore     bool
}

// defaults mirror the engine's documented external interface defaults.
const (
	defaultSessionsRoot        = "./sessions"
	defaultHashcatBinary       = "hashcat"
	defaultStatusTimer         = 10
	defaultCheckpointInterval  = 60 * time.Second
	defaultWatcherPollInterval = 5 * time.Second
	defaultMaxMemoryPercent    = 90.0
)

// Load builds a Config from command-line flags first, then environment
// variables for anything a flag left at its zero value, then an optional
// .env file loaded before the environment-variable pass (so HASHWRAP_* vars
// defined there are visible to os.Getenv). Load parses args with its own
// freshly constructed FlagSet; it never touches flag.CommandLine.
func Load(args []string) (*Config, error) {
	// Load .env before reading any environment variables so file-provided
	// values participate in the override chain below.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	fs := flag.NewFlagSet("hashwrap", flag.ContinueOnError)

	fs.StringVar(&cfg.SessionsRoot, "sessions-dir", "", "session storage root")
	fs.StringVar(&cfg.IngestDir, "ingest-dir", "", "hot-reload ingestion directory")
	fs.StringVar(&cfg.HashcatBinary, "hashcat", "", "path to the hashcat binary")
	fs.IntVar(&cfg.Workload, "workload", 0, "hashcat -w workload profile (1-4)")
	fs.IntVar(&cfg.StatusTimer, "status-timer", 0, "hashcat --status-timer interval in seconds")
	fs.BoolVar(&cfg.StatusJSON, "status-json", false, "request hashcat --status-json output")
	fs.StringVar(&cfg.StatusFile, "status-file", "", "mirror status updates to this file")
	fs.StringVar(&cfg.WordlistDir, "wordlist-dir", "", "allowed wordlist root")
	fs.StringVar(&cfg.RulesDir, "rules-dir", "", "allowed rules root")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&cfg.SessionName, "session", "", "explicit session name")
	fs.BoolVar(&cfg.Restore, "restore", false, "restore the session's last attack via hashcat --restore")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if cfg.SessionsRoot == "" {
		cfg.SessionsRoot = os.Getenv("HASHWRAP_SESSIONS_DIR")
	}
	if cfg.IngestDir == "" {
		cfg.IngestDir = os.Getenv("HASHWRAP_INGEST_DIR")
	}
	if cfg.HashcatBinary == "" {
		cfg.HashcatBinary = os.Getenv("HASHWRAP_HASHCAT_BIN")
	}
	if cfg.Workload == 0 {
		cfg.Workload = envInt("HASHWRAP_WORKLOAD", 0)
	}
	if cfg.StatusTimer == 0 {
		cfg.StatusTimer = envInt("HASHWRAP_STATUS_TIMER", 0)
	}
	if !cfg.StatusJSON {
		cfg.StatusJSON = os.Getenv("HASHWRAP_STATUS_JSON") == "true"
	}
	if cfg.StatusFile == "" {
		cfg.StatusFile = os.Getenv("HASHWRAP_STATUS_FILE")
	}
	if cfg.WordlistDir == "" {
		cfg.WordlistDir = os.Getenv("HASHWRAP_WORDLIST_DIR")
	}
	if cfg.RulesDir == "" {
		cfg.RulesDir = os.Getenv("HASHWRAP_RULES_DIR")
	}
	if !cfg.Debug {
		cfg.Debug = os.Getenv("HASHWRAP_DEBUG") == "true"
	}
	cfg.CheckpointInterval = envDuration("HASHWRAP_CHECKPOINT_INTERVAL", 0)
	cfg.WatcherPollInterval = envDuration("HASHWRAP_WATCHER_POLL_INTERVAL", 0)
	cfg.RateLimitPerMinute = envInt("HASHWRAP_RATE_LIMIT_PER_MINUTE", 0)
	cfg.MaxMemoryPercent = envFloat("HASHWRAP_MAX_MEMORY_PERCENT", 0)
}

func applyDefaults(cfg *Config) {
	if cfg.SessionsRoot == "" {
		cfg.SessionsRoot = defaultSessionsRoot
	}
	if cfg.HashcatBinary == "" {
		cfg.HashcatBinary = defaultHashcatBinary
	}
	if cfg.StatusTimer == 0 {
		cfg.StatusTimer = defaultStatusTimer
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = defaultCheckpointInterval
	}
	if cfg.WatcherPollInterval == 0 {
		cfg.WatcherPollInterval = defaultWatcherPollInterval
	}
	if cfg.MaxMemoryPercent == 0 {
		cfg.MaxMemoryPercent = defaultMaxMemoryPercent
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	return d
}
