package attack

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackandbackpack/hashwrap/internal/identify"
)

// Priority bands, lower runs earlier. Hot-reload quick attacks (see
// InjectHotReloadAttacks) use QuickWin minus a fraction so they always sort
// ahead of a normal plan's quick-win phase.
const (
	PriorityQuickWin         = 10.0
	PriorityContextTargeted  = 20.0
	PriorityRuleBased        = 30.0
	PriorityMask             = 40.0
	PriorityHotReloadBoost   = 0.5
)

// ResourceSnapshot carries the planner's view of available compute, used to
// pick sane defaults (workload profile, rule-file size) without the planner
// reaching out to hardware detection itself.
type ResourceSnapshot struct {
	CPUCount      int
	HasGPU        bool
	AvailableMemMB uint64
}

// PasswordPolicy is an optional target policy driving a synthesized mask
// attack: minimum length and required character classes.
type PasswordPolicy struct {
	MinLength        int
	RequireLower     bool
	RequireUpper     bool
	RequireDigit     bool
	RequireSymbol    bool
}

// PlannerConfig names the wordlist/rule assets the planner references. A
// real deployment supplies paths that exist under the path sandbox; tests
// supply fixture paths.
type PlannerConfig struct {
	QuickWordlist    string // tiny, known-common passwords
	ADRules          string // rule file favoring AD/company-name patterns
	WebDefaultsList  string // default-credential list for web-app stacks
	MediumWordlist   string // medium wordlist for the rule-based phase
	StandardRules    string
}

// Plan produces a deterministic, ordered list of attacks from an analysis
// and a resource snapshot. It holds no state between invocations.
func Plan(analysis *identify.Analysis, resources ResourceSnapshot, policy *PasswordPolicy, cfg PlannerConfig) []*Attack {
	var attacks []*Attack

	// Phase 1: quick-win.
	if cfg.QuickWordlist != "" {
		attacks = append(attacks, &Attack{
			Name:                "quick-win-top-wordlist",
			Kind:                KindDictionary,
			Priority:            PriorityQuickWin,
			Wordlist:            cfg.QuickWordlist,
			EstimatedDuration:   30 * time.Second,
			SuccessProbability:  0.3,
		})
	}

	// Phase 2: context-targeted, selected by analysis hints.
	isADDump := false
	isWebApp := false
	for name := range analysis.DetectedTypes {
		if strings.Contains(name, "NTLM") || strings.Contains(name, "NetNTLM") {
			isADDump = true
		}
		if strings.Contains(name, "phpBB") || strings.Contains(name, "WordPress") ||
			strings.Contains(name, "Django") || strings.Contains(name, "bcrypt") ||
			name == "MD5" {
			isWebApp = true
		}
	}
	if isADDump && cfg.ADRules != "" && cfg.QuickWordlist != "" {
		attacks = append(attacks, &Attack{
			Name:                "ad-season-company-rules",
			Kind:                KindRuleBased,
			Priority:            PriorityContextTargeted,
			Wordlist:            cfg.QuickWordlist,
			Rules:               cfg.ADRules,
			SuccessProbability:  0.4,
		})
	}
	if isWebApp && cfg.WebDefaultsList != "" {
		attacks = append(attacks, &Attack{
			Name:                "web-app-default-credentials",
			Kind:                KindDictionary,
			Priority:            PriorityContextTargeted,
			Wordlist:            cfg.WebDefaultsList,
			SuccessProbability:  0.35,
		})
	}

	// Phase 3: rule-based over a medium wordlist.
	if cfg.MediumWordlist != "" && cfg.StandardRules != "" {
		attacks = append(attacks, &Attack{
			Name:                "rule-based-medium-wordlist",
			Kind:                KindRuleBased,
			Priority:            PriorityRuleBased,
			Wordlist:            cfg.MediumWordlist,
			Rules:               cfg.StandardRules,
			SuccessProbability:  0.25,
		})
	}

	// Phase 4: a single policy-synthesized mask attack, added only when a
	// password policy is supplied; no other mask attack is planned.
	if policy != nil {
		mask := synthesizeMask(*policy)
		attacks = append(attacks, &Attack{
			Name:                "policy-synthesized-mask",
			Kind:                KindMask,
			Priority:            PriorityMask,
			Mask:                mask,
			SuccessProbability:  0.15,
		})
	}

	return attacks
}

// synthesizeMask builds a mask from a password policy: one class token per
// required class, padded with an "any" class token up to the minimum
// length.
func synthesizeMask(policy PasswordPolicy) string {
	var b strings.Builder
	if policy.RequireLower {
		b.WriteString("?l")
	}
	if policy.RequireUpper {
		b.WriteString("?u")
	}
	if policy.RequireDigit {
		b.WriteString("?d")
	}
	if policy.RequireSymbol {
		b.WriteString("?s")
	}
	classes := b.Len() / 2
	for classes < policy.MinLength {
		b.WriteString("?a")
		classes++
	}
	return b.String()
}

// InjectHotReloadAttacks synthesizes the two small high-priority attacks the
// engine loop pushes directly onto the queue when the file watcher reports
// newly ingested hashes mid-run, scoped to the dominant detected type,
// matching core/hash_watcher.py's HashReloader.
func InjectHotReloadAttacks(dominantMode int, quickWordlist string) []*Attack {
	mode := dominantMode
	return []*Attack{
		{
			Name:                "hot-reload-quick-dictionary",
			Kind:                KindDictionary,
			Priority:            PriorityQuickWin - PriorityHotReloadBoost,
			Wordlist:            quickWordlist,
			HashMode:            &mode,
			SuccessProbability:  0.9,
		},
		{
			Name:                "hot-reload-common-mask",
			Kind:                KindMask,
			Priority:            PriorityQuickWin - PriorityHotReloadBoost + 0.1,
			Mask:                "?u?l?l?l?l?l?d?d",
			HashMode:            &mode,
			SuccessProbability:  0.7,
		},
	}
}

// ErrNoAttacks is returned by callers that expect a non-empty plan and got
// none; not returned by Plan itself, which always returns a (possibly
// empty) deterministic slice.
var ErrNoAttacks = fmt.Errorf("attack: empty plan")
