package checker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryRecordAndRecent(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	first := sampleReport()
	first.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	second := newReport(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), nil)

	require.NoError(t, h.Record(ctx, first))
	require.NoError(t, h.Record(ctx, second))

	runs, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, first.RunID, runs[1].RunID)
	assert.True(t, first.StartedAt.Equal(runs[1].StartedAt))
	assert.Equal(t, first.Counts, runs[1].Counts)
	assert.Equal(t, first.Duration, runs[1].Duration)

	limited, err := h.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.RunID, limited[0].RunID)
}

func TestHistoryCodeCounts(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	rep := sampleReport()
	require.NoError(t, h.Record(ctx, rep))

	counts, err := h.CodeCounts(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, []CodeCount{{"E002", 1}, {"I001", 1}, {"W002", 1}}, counts)

	none, err := h.CodeCounts(ctx, "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryDuplicateRunFails(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	rep := sampleReport()
	require.NoError(t, h.Record(ctx, rep))
	assert.Error(t, h.Record(ctx, rep))

	// the failed transaction left nothing behind
	counts, err := h.CodeCounts(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Len(t, counts, 3)
}

func TestHistoryReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	h, err := OpenHistory(path)
	require.NoError(t, err)
	rep := sampleReport()
	require.NoError(t, h.Record(context.Background(), rep))
	require.NoError(t, h.Close())

	h, err = OpenHistory(path)
	require.NoError(t, err)
	defer h.Close()
	runs, err := h.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].RunID)
}
