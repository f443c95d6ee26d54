package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashFormatAcceptsPlausibleRecord(t *testing.T) {
	valid, err := HashFormat("5f4dcc3b5aa765d61d8327deb882cf99")
	assert.NoError(t, err)
	assert.Equal(t, "5f4dcc3b5aa765d61d8327deb882cf99", valid)
}

func TestHashFormatTrimsTrailingWhitespace(t *testing.T) {
	valid, err := HashFormat("5f4dcc3b5aa765d61d8327deb882cf99 \r\n")
	assert.NoError(t, err)
	assert.Equal(t, "5f4dcc3b5aa765d61d8327deb882cf99", valid)
}

func TestHashFormatRejectsEmpty(t *testing.T) {
	_, err := HashFormat("   ")
	assert.Error(t, err)
}

func TestHashFormatRejectsTooShort(t *testing.T) {
	_, err := HashFormat("abc123")
	assert.Error(t, err)
}

func TestHashFormatRejectsOversizedLine(t *testing.T) {
	_, err := HashFormat(strings.Repeat("a", MaxHashLineLen+1))
	assert.Error(t, err)
}

func TestHashFormatRejectsNonPrintable(t *testing.T) {
	_, err := HashFormat("5f4dcc3b5aa765d61d8327deb882cf99\x00")
	assert.Error(t, err)
}

func TestSessionNameGrammar(t *testing.T) {
	assert.NoError(t, SessionName("my-session_01"))
	assert.Error(t, SessionName(""))
	assert.Error(t, SessionName("has a space"))
	assert.Error(t, SessionName(strings.Repeat("x", 65)))
}

func TestIsAutoSessionID(t *testing.T) {
	assert.True(t, IsAutoSessionID("20260729_143022"))
	assert.False(t, IsAutoSessionID("my-session"))
	assert.False(t, IsAutoSessionID("2026-07-29"))
}

func TestAttackNameGrammar(t *testing.T) {
	assert.NoError(t, AttackName("quick-win top wordlist.v2"))
	assert.Error(t, AttackName(""))
	assert.Error(t, AttackName("bad/name"))
}

func TestMaskAcceptsSafeCharset(t *testing.T) {
	assert.NoError(t, Mask("?u?l?l?l?l?d?d"))
}

func TestMaskRejectsUnsafeCharacters(t *testing.T) {
	err := Mask("?u;rm -rf /")
	assert.Error(t, err)
}

func TestMaskRejectsOverlongMask(t *testing.T) {
	err := Mask(strings.Repeat("?a", 200))
	assert.Error(t, err)
}
