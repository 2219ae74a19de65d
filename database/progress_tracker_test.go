package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *ProgressTracker {
	t.Helper()
	tracker, err := NewProgressTracker(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func TestProgressMarkAndCheck(t *testing.T) {
	tracker := newTestTracker(t)

	processed, err := tracker.IsProcessed("rec-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, tracker.MarkProcessed("rec-1", 0))

	processed, err = tracker.IsProcessed("rec-1")
	require.NoError(t, err)
	assert.True(t, processed)

	// Marking again is harmless.
	require.NoError(t, tracker.MarkProcessed("rec-1", 1))
	count, err := tracker.ProcessedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProgressBatch(t *testing.T) {
	tracker := newTestTracker(t)

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec-%03d", i)
	}
	require.NoError(t, tracker.MarkBatchProcessed(ids, 7))

	count, err := tracker.ProcessedCount()
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)

	last, err := tracker.LastBatch()
	require.NoError(t, err)
	assert.Equal(t, 7, last)

	require.NoError(t, tracker.MarkBatchProcessed(nil, 8))
}

func TestProgressLastBatchFreshRun(t *testing.T) {
	tracker := newTestTracker(t)
	last, err := tracker.LastBatch()
	require.NoError(t, err)
	assert.Equal(t, -1, last)
}

func TestProgressMetadata(t *testing.T) {
	tracker := newTestTracker(t)

	_, ok, err := tracker.GetMetadata("last_run_id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tracker.SetMetadata("last_run_id", "run-1"))
	require.NoError(t, tracker.SetMetadata("last_run_id", "run-2"))

	value, ok, err := tracker.GetMetadata("last_run_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "run-2", value)
}
