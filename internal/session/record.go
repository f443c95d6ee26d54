// Package session defines the engine's session record shape and the
// cross-platform file-lock and atomic-rename primitives the session store
// builds its checkpoint protocol on, grounded on core/session_manager.py's
// checkpoint protocol.
package session

import (
	"time"

	"github.com/hackandbackpack/hashwrap/internal/attack"
)

// Status is the session's lifecycle state.
type Status string

const (
	StatusCreated   Status = "Created"
	StatusRunning   Status = "Running"
	StatusPaused    Status = "Paused"
	StatusCompleted Status = "Completed"
	StatusAborted   Status = "Aborted"
	StatusError     Status = "Error"
)

// AttackSnapshot is the serializable form of an attack.Attack, carrying
// enough to reconstruct a queue entry on resume.
type AttackSnapshot struct {
	Name               string        `json:"name"`
	Kind               attack.Kind   `json:"kind"`
	Priority           float64       `json:"priority"`
	HashMode           *int          `json:"hash_mode,omitempty"`
	Wordlist           string        `json:"wordlist,omitempty"`
	Rules              string        `json:"rules,omitempty"`
	Mask               string        `json:"mask,omitempty"`
	EstimatedDuration  time.Duration `json:"estimated_duration"`
	SuccessProbability float64       `json:"success_probability"`
}

// CompletedAttack pairs a snapshot with the result it produced.
type CompletedAttack struct {
	Attack       AttackSnapshot `json:"attack"`
	CrackedCount int            `json:"cracked_count"`
	Duration     time.Duration  `json:"duration"`
	ExitCode     int            `json:"exit_code"`
}

// Statistics is the point-in-time counters block carried in the record.
type Statistics struct {
	TotalHashes   int `json:"total_hashes"`
	CrackedCount  int `json:"cracked_count"`
	RemainingHash int `json:"remaining_count"`
}

// Record is the full on-disk session state. Every field is exported for
// JSON round-tripping; the store is the only writer.
type Record struct {
	ID               string            `json:"id"`
	Status           Status            `json:"status"`
	StartTime        time.Time         `json:"start_time"`
	LastCheckpoint   time.Time         `json:"last_checkpoint"`
	RuntimeSeconds   float64           `json:"runtime_seconds"`
	HashFilePath     string            `json:"hash_file_path"`
	PotfilePath      string            `json:"potfile_path"`
	PendingAttacks   []AttackSnapshot  `json:"pending_attacks"`
	CompletedAttacks []CompletedAttack `json:"completed_attacks"`
	CurrentAttack    *AttackSnapshot   `json:"current_attack,omitempty"`
	Statistics       Statistics        `json:"statistics"`
	HotReloadEnabled bool              `json:"hot_reload_enabled"`
	RestorePending   bool              `json:"restore_pending"`
}

// ToSnapshot converts a live attack into its checkpoint-safe form.
func ToSnapshot(a *attack.Attack) AttackSnapshot {
	return AttackSnapshot{
		Name:               a.Name,
		Kind:               a.Kind,
		Priority:           a.Priority,
		HashMode:           a.HashMode,
		Wordlist:           a.Wordlist,
		Rules:              a.Rules,
		Mask:               a.Mask,
		EstimatedDuration:  a.EstimatedDuration,
		SuccessProbability: a.SuccessProbability,
	}
}

// ToAttack reconstructs a queueable attack from a snapshot, preserving the
// sequence-assignment-at-push-time contract (Queue.Push assigns Sequence).
func (s AttackSnapshot) ToAttack() *attack.Attack {
	return &attack.Attack{
		Name:               s.Name,
		Kind:               s.Kind,
		Priority:           s.Priority,
		HashMode:           s.HashMode,
		Wordlist:           s.Wordlist,
		Rules:              s.Rules,
		Mask:               s.Mask,
		EstimatedDuration:  s.EstimatedDuration,
		SuccessProbability: s.SuccessProbability,
	}
}
