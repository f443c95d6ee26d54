package sessionstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackandbackpack/hashwrap/internal/session"
)

func newTestStore(t *testing.T, interval time.Duration) *Store {
	t.Helper()
	store, err := New(t.TempDir(), interval)
	require.NoError(t, err)
	return store
}

func TestCheckpointThenLoadRoundTrips(t *testing.T) {
	store := newTestStore(t, time.Millisecond)
	rec := &session.Record{ID: "20260729_143022", Status: session.StatusRunning, HashFilePath: "/tmp/h.txt"}

	require.NoError(t, store.Checkpoint(rec, true))

	loaded, err := store.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, session.StatusRunning, loaded.Status)
	assert.False(t, loaded.LastCheckpoint.IsZero())
}

func TestLoadUnknownSessionReturnsSentinel(t *testing.T) {
	store := newTestStore(t, time.Millisecond)
	_, err := store.Load("nope")
	assert.Equal(t, ErrSessionNotFound, err)
}

func TestCheckpointWithoutForceIsRateLimited(t *testing.T) {
	store := newTestStore(t, time.Hour)
	rec := &session.Record{ID: "sess1"}

	require.NoError(t, store.Checkpoint(rec, true))
	firstCheckpointTime := rec.LastCheckpoint

	rec.Status = session.StatusPaused
	require.NoError(t, store.Checkpoint(rec, false))

	loaded, err := store.Load(rec.ID)
	require.NoError(t, err)
	// The second (non-forced, within interval) checkpoint should have been
	// skipped, so the on-disk record still reflects the first write.
	assert.Equal(t, firstCheckpointTime.Unix(), loaded.LastCheckpoint.Unix())
	assert.NotEqual(t, session.StatusPaused, loaded.Status)
}

func TestCheckpointForceBypassesRateLimit(t *testing.T) {
	store := newTestStore(t, time.Hour)
	rec := &session.Record{ID: "sess2"}

	require.NoError(t, store.Checkpoint(rec, true))
	rec.Status = session.StatusPaused
	require.NoError(t, store.Checkpoint(rec, true))

	loaded, err := store.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPaused, loaded.Status)
}

func TestListReturnsSortedCheckpointedSessions(t *testing.T) {
	store := newTestStore(t, time.Millisecond)
	require.NoError(t, store.Checkpoint(&session.Record{ID: "b"}, true))
	require.NoError(t, store.Checkpoint(&session.Record{ID: "a"}, true))
	require.NoError(t, store.Checkpoint(&session.Record{ID: "c"}, true))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestConcurrentCheckpointsOfDifferentSessionsAreSafe(t *testing.T) {
	store := newTestStore(t, time.Millisecond)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &session.Record{ID: "concurrent-" + string(rune('a'+n))}
			assert.NoError(t, store.Checkpoint(rec, true))
		}(i)
	}
	wg.Wait()

	ids, err := store.List()
	require.NoError(t, err)
	assert.Len(t, ids, 10)
}

func TestResumeDetectsRestoreFile(t *testing.T) {
	store := newTestStore(t, time.Millisecond)
	rec := &session.Record{ID: "resumable"}
	require.NoError(t, store.Checkpoint(rec, true))

	assert.False(t, store.HasRestoreFile(rec.ID))

	require.NoError(t, os.WriteFile(store.RestorePath(rec.ID), []byte{}, 0o600))
	assert.True(t, store.HasRestoreFile(rec.ID))
}

func TestPotfilePathIsUnderSessionDir(t *testing.T) {
	store := newTestStore(t, time.Millisecond)
	assert.Equal(t, filepath.Join(store.Dir("x"), "hashwrap.potfile"), store.PotfilePath("x"))
}
