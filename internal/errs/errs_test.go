package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorSatisfiesErrorInterfaceAndUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	e := New(KindFileAccess, SeverityCritical, "store.Checkpoint", "write_failed", map[string]string{"path": "/tmp/x"}, cause)

	assert.Contains(t, e.Error(), "FileAccess")
	assert.Contains(t, e.Error(), "Critical")
	assert.Contains(t, e.Error(), "write_failed")
	assert.Same(t, cause, errors.Unwrap(e))
}

func TestErrorWrapsIntoFmtErrorf(t *testing.T) {
	e := New(KindProcess, SeverityRecoverable, "supervisor.Run", "spawn_failed", nil, errors.New("exec: not found"))
	wrapped := fmt.Errorf("engine: launch: %w", e)

	var target *Error
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, KindProcess, target.Kind)
}

func TestWithContextCopiesRatherThanMutates(t *testing.T) {
	e := New(KindValidation, SeverityCritical, "op", "code", map[string]string{"a": "1"}, nil)
	e2 := e.WithContext("b", "2")

	assert.Len(t, e.Context, 1)
	assert.Len(t, e2.Context, 2)
	assert.Equal(t, "1", e2.Context["a"])
}

func TestAsFindsWrappedStructuredError(t *testing.T) {
	inner := New(KindSecurity, SeverityFatal, "sandbox.Validate", "outside_sandbox", nil, nil)
	wrapped := fmt.Errorf("cmdbuilder: %w", inner)

	found, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "outside_sandbox", found.Code)
}

func TestAsReturnsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestClassificationHelpersSetExpectedKindAndSeverity(t *testing.T) {
	cases := []struct {
		name     string
		err      *Error
		wantKind Kind
		wantSev  Severity
	}{
		{"FileNotFound", FileNotFound("op", "/a", nil), KindFileAccess, SeverityRecoverable},
		{"PermissionDenied", PermissionDenied("op", "/a", nil), KindFileAccess, SeverityCritical},
		{"OutOfMemory", OutOfMemory("op", nil), KindResource, SeverityFatal},
		{"ProcessTimeout", ProcessTimeout("op", nil), KindProcess, SeverityRecoverable},
		{"InvalidHash", InvalidHash("op", "x", nil), KindValidation, SeverityCritical},
		{"UnsafeMask", UnsafeMask("op", "x", nil), KindSecurity, SeverityFatal},
		{"OutsideSandbox", OutsideSandbox("op", "x", nil), KindSecurity, SeverityFatal},
		{"BadConfig", BadConfig("op", "x", nil), KindConfiguration, SeverityRecoverable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantKind, tc.err.Kind)
			assert.Equal(t, tc.wantSev, tc.err.Severity)
		})
	}
}
