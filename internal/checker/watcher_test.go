package checker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mglint/internal/mangle/diag"
)

func newTestWatcher(t *testing.T, root string) (*Watcher, <-chan *Report) {
	t.Helper()
	cfg := testConfig()
	cfg.Watch.Debounce = "50ms"
	reports := make(chan *Report, 16)
	w, err := NewWatcher(NewRunner(cfg), []string{root}, func(r *Report) {
		select {
		case reports <- r:
		default:
		}
	})
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w, reports
}

func waitReport(t *testing.T, reports <-chan *Report) *Report {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no report within 5s")
		return nil
	}
}

func TestWatcherChecksChangedFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mg": goodProgram})
	w, reports := newTestWatcher(t, root)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	assert.True(t, w.IsWatching())

	path := filepath.Join(root, "a.mg")
	// several quick saves settle into one check
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(orphanProgram), 0o644))
	}

	rep := waitReport(t, reports)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, path, rep.Files[0].Path)
	assert.Equal(t, []diag.Code{diag.CodeRangeRestriction, diag.CodeUnboundNegation}, codes(rep.Files[0].Findings))

	stats := w.Stats()
	assert.GreaterOrEqual(t, stats.Events, 1)
	assert.GreaterOrEqual(t, stats.Runs, 1)
	assert.Equal(t, path, stats.LastEventPath)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mg": goodProgram})
	w, reports := newTestWatcher(t, root)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		for _, d := range w.WatchedDirs() {
			if d == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.mg"), []byte(cycleProgram), 0o644))
	rep := waitReport(t, reports)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, []diag.Code{diag.CodeStratification}, codes(rep.Files[0].Findings))
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"a.mg": goodProgram})
	w, reports := newTestWatcher(t, root)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	select {
	case <-reports:
		t.Fatal("unexpected report for a non-.mg file")
	case <-time.After(300 * time.Millisecond):
	}
	assert.Equal(t, 0, w.Stats().Events)
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	w, _ := newTestWatcher(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	cancel()
	w.Stop()
	assert.False(t, w.IsWatching())
	// idempotent
	w.Stop()
}

func TestWatcherStartMissingRoot(t *testing.T) {
	w, _ := newTestWatcher(t, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, w.Start(context.Background()))
	assert.False(t, w.IsWatching())
}

func TestWatcherCloseWithoutStart(t *testing.T) {
	w, _ := newTestWatcher(t, t.TempDir())
	w.Close()
	w.Close()
	assert.ErrorIs(t, w.Start(context.Background()), fsnotify.ErrClosed)
	assert.False(t, w.IsWatching())
}

func TestWatcherCloseStopsRunningWatcher(t *testing.T) {
	w, _ := newTestWatcher(t, t.TempDir())
	require.NoError(t, w.Start(context.Background()))
	w.Close()
	assert.False(t, w.IsWatching())
	w.Stop()
}

func TestWatcherTracksWorkspace(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.mg":          goodProgram,
		"b.mg":          orphanProgram,
		"vendor/c.mg":   goodProgram,
		"notes/skip.md": "x",
	})
	w, reports := newTestWatcher(t, root)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	a, b := filepath.Join(root, "a.mg"), filepath.Join(root, "b.mg")
	assert.Equal(t, []string{a, b}, w.Files())
	files, failing := w.Summary()
	assert.Equal(t, 2, files)
	assert.Equal(t, 1, failing)

	require.NoError(t, os.WriteFile(b, []byte(goodProgram), 0o644))
	waitReport(t, reports)
	files, failing = w.Summary()
	assert.Equal(t, 2, files)
	assert.Equal(t, 0, failing)

	require.NoError(t, os.Remove(b))
	require.Eventually(t, func() bool {
		return len(w.Files()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{a}, w.Files())
}
