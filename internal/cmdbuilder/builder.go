// Package cmdbuilder constructs hashcat argv slices, validating every
// filesystem path through the path sandbox and every other field through
// internal/validate, grounded on core/security.py's build_hashcat_command.
package cmdbuilder

import (
	"fmt"

	"github.com/hackandbackpack/hashwrap/internal/attack"
	"github.com/hackandbackpack/hashwrap/internal/errs"
	"github.com/hackandbackpack/hashwrap/internal/sandbox"
	"github.com/hackandbackpack/hashwrap/internal/validate"
)

// Params carries the per-invocation fields not already on the Attack.
type Params struct {
	Binary          string
	Potfile         string
	Session         string
	Restore         bool
	WorkloadProfile int // 1-4; other values are silently dropped
	StatusTimer     int // seconds; 0 disables
	StatusJSON      bool
}

// Builder builds safe argv slices for one sandbox.
type Builder struct {
	sb *sandbox.Sandbox
}

// New builds a Builder bound to sb.
func New(sb *sandbox.Sandbox) *Builder {
	return &Builder{sb: sb}
}

// Build constructs the argv for running a against hashFile. The argv is an
// ordered token list — never passed through a shell — in the fixed order:
// binary, hash-file, mode flag, attack-type flag, wordlist, rules flag,
// mask, potfile flag, quiet flag, workload flag, session flag, restore
// flag, status-timer.
func (b *Builder) Build(a *attack.Attack, hashFile string, p Params) ([]string, error) {
	if a.HashMode == nil {
		return nil, errs.New(errs.KindValidation, errs.SeverityCritical, "cmdbuilder.Build", "missing_mode", nil, fmt.Errorf("attack %q has no hash mode", a.Name))
	}

	modeToken, ok := a.Kind.ModeToken()
	if !ok {
		return nil, errs.New(errs.KindValidation, errs.SeverityCritical, "cmdbuilder.Build", "invalid_kind", map[string]string{"kind": string(a.Kind)}, fmt.Errorf("unrecognized attack kind %q", a.Kind))
	}

	safeHashFile, err := b.sb.Validate(hashFile, true)
	if err != nil {
		return nil, err
	}

	if p.Session != "" {
		if err := validate.SessionName(p.Session); err != nil {
			return nil, err
		}
	}

	argv := []string{p.Binary, safeHashFile, "-m", fmt.Sprintf("%d", *a.HashMode), "-a", modeToken}

	if a.Wordlist != "" {
		safeWordlist, err := b.sb.Validate(a.Wordlist, true)
		if err != nil {
			return nil, err
		}
		argv = append(argv, safeWordlist)
	}

	if a.Rules != "" {
		safeRules, err := b.sb.Validate(a.Rules, true)
		if err != nil {
			return nil, err
		}
		argv = append(argv, "-r", safeRules)
	}

	if a.Mask != "" {
		if err := validate.Mask(a.Mask); err != nil {
			return nil, err
		}
		argv = append(argv, a.Mask)
	}

	if p.Potfile != "" {
		safePotfile, err := b.sb.Validate(p.Potfile, false)
		if err != nil {
			return nil, err
		}
		argv = append(argv, "--potfile-path", safePotfile)
	}

	argv = append(argv, "--quiet")

	workload := 3
	if p.WorkloadProfile >= 1 && p.WorkloadProfile <= 4 {
		workload = p.WorkloadProfile
	}
	argv = append(argv, "-w", fmt.Sprintf("%d", workload))

	if p.Session != "" {
		argv = append(argv, "--session", p.Session)
	}

	if p.Restore {
		if p.Session == "" {
			return nil, errs.New(errs.KindValidation, errs.SeverityCritical, "cmdbuilder.Build", "restore_without_session", nil, fmt.Errorf("--restore requires --session"))
		}
		argv = append(argv, "--restore")
	}

	if p.StatusTimer > 0 {
		argv = append(argv, "--status", "--status-timer", fmt.Sprintf("%d", p.StatusTimer))
		if p.StatusJSON {
			argv = append(argv, "--status-json")
		}
	}

	return argv, nil
}
