// Package validate holds the grammar checks shared across the engine: hash
// record shape, session names, attack names, and hashcat mask safety. These
// mirror core/security.py's SecurityValidator methods one-for-one.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hackandbackpack/hashwrap/internal/errs"
)

var (
	sessionNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	autoSessionRe = regexp.MustCompile(`^\d{8}_\d{6}$`)
	attackNameRe  = regexp.MustCompile(`^[A-Za-z0-9_ .-]{1,128}$`)
	hexRe         = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	printableRe   = regexp.MustCompile(`^[\x20-\x7E]+$`)
)

// MaskSafeCharset is the complete set of characters a mask string may use:
// hashcat's built-in class tokens plus literal alphanumerics.
const MaskSafeCharset = "?ludsahHx0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const maxMaskLen = 256

// MaxHashLineLen is the maximum accepted length, in bytes, of a single hash
// record line.
const MaxHashLineLen = 1024

// HashFormat validates a single hash-file record: after trailing whitespace
// is trimmed it must be non-empty, printable ASCII, and between 8 and
// MaxHashLineLen bytes long. The record's shape (hex digest, base64 token,
// `$`-framed crypt string) is not checked.
func HashFormat(line string) (string, error) {
	trimmed := strings.TrimRight(line, " \t\r\n")
	if trimmed == "" {
		return "", errs.InvalidHash("validate.HashFormat", line, fmt.Errorf("empty line"))
	}
	if len(trimmed) > MaxHashLineLen {
		return "", errs.InvalidHash("validate.HashFormat", truncate(trimmed), fmt.Errorf("line exceeds %d bytes", MaxHashLineLen))
	}
	if !printableRe.MatchString(trimmed) {
		return "", errs.InvalidHash("validate.HashFormat", truncate(trimmed), fmt.Errorf("non-printable bytes"))
	}
	if len(trimmed) < 8 {
		return "", errs.InvalidHash("validate.HashFormat", trimmed, fmt.Errorf("shorter than 8 chars"))
	}
	return trimmed, nil
}

// SessionName validates an explicit session name against the engine's
// grammar.
func SessionName(name string) error {
	if !sessionNameRe.MatchString(name) {
		return errs.New(errs.KindValidation, errs.SeverityCritical, "validate.SessionName", "invalid_session_name",
			map[string]string{"name": name}, fmt.Errorf("must match %s", sessionNameRe.String()))
	}
	return nil
}

// IsAutoSessionID reports whether id matches the timestamp-derived
// auto-generated session id grammar (UTC YYYYMMDD_HHMMSS).
func IsAutoSessionID(id string) bool {
	return autoSessionRe.MatchString(id)
}

// AttackName validates an attack descriptor's display name.
func AttackName(name string) error {
	if !attackNameRe.MatchString(name) {
		return errs.New(errs.KindValidation, errs.SeverityCritical, "validate.AttackName", "invalid_attack_name",
			map[string]string{"name": name}, fmt.Errorf("must match %s", attackNameRe.String()))
	}
	return nil
}

// Mask validates a hashcat mask string against the safe character set and
// length bound. On violation the error names every offending character.
func Mask(mask string) error {
	if len(mask) > maxMaskLen {
		return errs.UnsafeMask("validate.Mask", mask, fmt.Errorf("length %d exceeds %d", len(mask), maxMaskLen))
	}
	var bad []rune
	for _, r := range mask {
		if !strings.ContainsRune(MaskSafeCharset, r) {
			bad = append(bad, r)
		}
	}
	if len(bad) > 0 {
		return errs.UnsafeMask("validate.Mask", mask, fmt.Errorf("invalid mask characters: %q", string(bad)))
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= 64 {
		return s
	}
	return s[:64] + "..."
}
