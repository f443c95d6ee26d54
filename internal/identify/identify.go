// Package identify classifies hash strings into hash types and produces
// file-level analyses with attack recommendations, grounded on
// core/hash_analyzer.py.
package identify

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Classification is the result of classifying a single hash-file line.
type Classification struct {
	Name       string
	Mode       int
	Confidence float64
}

// Priority orders recommendations high -> medium -> low.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// Recommendation is one actionable suggestion from analyzing a hash file.
type Recommendation struct {
	Priority    Priority
	Action      string
	Description string
	Wordlists   []string
	Types       map[string]int
}

// TypeCount accumulates per-type statistics during file analysis.
type TypeCount struct {
	Count      int
	Mode       int
	Confidence float64
	Samples    []string
}

// UnknownSample records an unrecognized line for manual review.
type UnknownSample struct {
	Line int
	Hash string
}

// Analysis is the result of analyzing a whole hash file.
type Analysis struct {
	TotalHashes     int
	DetectedTypes   map[string]*TypeCount
	UnknownHashes   []UnknownSample
	Recommendations []Recommendation
	ShapeHistogram  map[string]int
}

// Identifier classifies hash strings and analyzes hash files. It keeps a
// bounded LRU of recent classifications so repeated analysis passes over
// the same lines (e.g. re-analysis triggered by hot-reload) skip redundant
// regex evaluation.
type Identifier struct {
	cache *lru.Cache[string, *Classification]
}

// New builds an Identifier with a classification cache sized to hold the
// most recently seen 4096 distinct lines.
func New() *Identifier {
	cache, _ := lru.New[string, *Classification](4096)
	return &Identifier{cache: cache}
}

// Classify determines the hash type of a single line. It returns (nil, nil)
// when no pattern matches and the salt heuristic does not apply either.
func (id *Identifier) Classify(line string) (*Classification, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("identify: empty line")
	}

	if c, ok := id.cache.Get(line); ok {
		return c, nil
	}

	c := classifyUncached(line)
	id.cache.Add(line, c)
	return c, nil
}

func classifyUncached(line string) *Classification {
	var best *Pattern
	for i := range Table {
		pat := &Table[i]
		if pat.re.MatchString(line) {
			if best == nil || pat.Confidence > best.Confidence {
				best = pat
			}
		}
	}
	if best != nil {
		return &Classification{Name: best.Name, Mode: best.Mode, Confidence: best.Confidence}
	}

	// Second pass: hash:salt shapes not matched by any full pattern.
	if idx := strings.Index(line, ":"); idx > 0 {
		prefix := line[:idx]
		if isHex(prefix) {
			switch len(prefix) {
			case 32:
				return &Classification{Name: "MD5 with salt", Mode: 10, Confidence: 0.7}
			case 40:
				return &Classification{Name: "SHA1 with salt", Mode: 110, Confidence: 0.7}
			case 64:
				return &Classification{Name: "SHA256 with salt", Mode: 1410, Confidence: 0.7}
			case 128:
				return &Classification{Name: "SHA512 with salt", Mode: 1710, Confidence: 0.7}
			}
		}
	}
	return nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// AnalyzeFile streams path line by line, classifying each non-empty line,
// and returns a full Analysis. sampleCap bounds how many unknown-line
// samples are retained (the contract caps it at 10 regardless).
func (id *Identifier) AnalyzeFile(path string, sampleCap int) (*Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("identify: open %s: %w", path, err)
	}
	defer f.Close()

	if sampleCap <= 0 || sampleCap > 10 {
		sampleCap = 10
	}

	a := &Analysis{
		DetectedTypes:  make(map[string]*TypeCount),
		ShapeHistogram: make(map[string]int),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		a.TotalHashes++
		classifyShape(line, a.ShapeHistogram)

		c, _ := id.Classify(line)
		if c == nil {
			if len(a.UnknownHashes) < sampleCap {
				a.UnknownHashes = append(a.UnknownHashes, UnknownSample{Line: lineNum, Hash: truncateSample(line)})
			}
			continue
		}

		tc, ok := a.DetectedTypes[c.Name]
		if !ok {
			tc = &TypeCount{Mode: c.Mode, Confidence: c.Confidence}
			a.DetectedTypes[c.Name] = tc
		}
		tc.Count++
		if len(tc.Samples) < 3 {
			tc.Samples = append(tc.Samples, truncateSample(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("identify: scan %s: %w", path, err)
	}

	a.Recommendations = generateRecommendations(a)
	return a, nil
}

func truncateSample(line string) string {
	if len(line) > 50 {
		return line[:50] + "..."
	}
	return line
}

// classifyShape updates the coarse shape histogram described by the
// streaming-processor's analyze_hash_distribution supplement.
func classifyShape(line string, hist map[string]int) {
	switch {
	case strings.HasPrefix(line, "$"):
		hist["special_format"]++
	case strings.Contains(line, ":"):
		hist["with_salt"]++
	case len(line) == 32 && isHex(line):
		hist["md5_like"]++
	case len(line) == 40 && isHex(line):
		hist["sha1_like"]++
	case len(line) == 64 && isHex(line):
		hist["sha256_like"]++
	case len(line) == 128 && isHex(line):
		hist["sha512_like"]++
	}
}

func generateRecommendations(a *Analysis) []Recommendation {
	var recs []Recommendation

	switch len(a.DetectedTypes) {
	case 1:
		for name, tc := range a.DetectedTypes {
			recs = append(recs, Recommendation{
				Priority:    PriorityHigh,
				Action:      "single_mode_attack",
				Description: fmt.Sprintf("Use mode %d for %s hashes", tc.Mode, name),
			})
		}
	default:
		if len(a.DetectedTypes) > 1 {
			types := make(map[string]int, len(a.DetectedTypes))
			for name, tc := range a.DetectedTypes {
				types[name] = tc.Mode
			}
			recs = append(recs, Recommendation{
				Priority:    PriorityHigh,
				Action:      "split_by_type",
				Description: "Split hashes by type for optimal performance",
				Types:       types,
			})
		}
	}

	names := make([]string, 0, len(a.DetectedTypes))
	for name := range a.DetectedTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch {
		case strings.Contains(name, "NTLM"):
			recs = append(recs, Recommendation{
				Priority:    PriorityMedium,
				Action:      "use_ad_wordlists",
				Description: "Detected Windows hashes - use Active Directory focused wordlists",
				Wordlists:   []string{"rockyou.txt", "ad_common.txt", "corporate_passwords.txt"},
			})
		case strings.Contains(name, "MySQL"), strings.Contains(name, "PostgreSQL"):
			recs = append(recs, Recommendation{
				Priority:    PriorityMedium,
				Action:      "use_db_defaults",
				Description: "Detected database hashes - try default credentials",
				Wordlists:   []string{"db_defaults.txt", "common_passwords.txt"},
			})
		case strings.Contains(name, "bcrypt"):
			recs = append(recs, Recommendation{
				Priority:    PriorityHigh,
				Action:      "optimize_bcrypt",
				Description: "bcrypt is slow - use targeted wordlists and limit iterations",
			})
		}
	}

	if len(a.UnknownHashes) > 0 {
		recs = append(recs, Recommendation{
			Priority:    PriorityLow,
			Action:      "investigate_unknown",
			Description: fmt.Sprintf("Found %d unknown hash formats - manual review needed", len(a.UnknownHashes)),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Priority < recs[j].Priority })
	return recs
}

// SuggestMode is a quick single-hash mode lookup for callers that only need
// a mode number.
func (id *Identifier) SuggestMode(sample string) (int, bool) {
	c, _ := id.Classify(sample)
	if c == nil {
		return 0, false
	}
	return c.Mode, true
}
