package checker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mglint/internal/logging"
	"mglint/internal/mangle"
)

// Watcher re-checks .mg files under a set of roots when they change. Rapid
// saves to the same file are coalesced: a file is checked once no event for
// it has arrived for the debounce window. A workspace mirrors the latest
// content of every tracked file.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	runner      *Runner
	workspace   *mangle.Workspace
	roots       []string
	onReport    func(*Report)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closed      bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Events        int
	Runs          int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// NewWatcher creates a watcher over roots (directories, or files whose
// parent directory is watched). onReport receives every report produced.
// Call Stop after a successful Start, or Close when Start is never called.
func NewWatcher(runner *Runner, roots []string, onReport func(*Report)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		runner:      runner,
		workspace:   mangle.NewWorkspace(),
		roots:       roots,
		onReport:    onReport,
		debounceMap: make(map[string]time.Time),
		debounceDur: runner.Config().GetWatchDebounce(),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start registers the watched directories and begins the event loop in a
// goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fsnotify.ErrClosed
	}
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, root := range w.roots {
		info, err := os.Stat(root)
		if err != nil {
			w.abort()
			return err
		}
		if !info.IsDir() {
			root = filepath.Dir(root)
		}
		if err := w.addTree(root); err != nil {
			w.abort()
			return err
		}
	}
	w.index(ctx)
	logging.Watch("watching %d director(ies), %d file(s), debounce %v",
		len(w.watcher.WatchList()), len(w.workspace.URIs()), w.debounceDur)

	go w.run(ctx)
	return nil
}

// abort undoes a failed Start.
func (w *Watcher) abort() {
	w.mu.Lock()
	w.running = false
	w.closed = true
	w.mu.Unlock()
	w.watcher.Close()
}

// Close releases the underlying fsnotify watcher. It stops a running
// watcher first and is safe to call more than once.
func (w *Watcher) Close() {
	w.Stop()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
}

// index loads every tracked file below the roots into the workspace.
func (w *Watcher) index(ctx context.Context) {
	for _, root := range w.roots {
		if err := w.workspace.IndexWorkspace(ctx, root); err != nil {
			logging.WatchError("cannot index %s: %v", root, err)
		}
	}
	for _, uri := range w.workspace.URIs() {
		if !w.tracked(mangle.URIToPath(uri)) {
			w.workspace.CloseDocument(uri)
		}
	}
}

// tracked reports whether expanding the roots would check path.
func (w *Watcher) tracked(path string) bool {
	cfg := w.runner.Config()
	for _, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if abs == path {
			return true
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		rel = filepath.ToSlash(rel)
		if matchAny(cfg.Include, rel) && !matchAny(cfg.Exclude, rel) {
			return true
		}
	}
	return false
}

// refresh re-reads path into the workspace, or drops it when it is gone.
func (w *Watcher) refresh(path string) {
	uri := mangle.PathToURI(path)
	content, err := os.ReadFile(path)
	// event names are relative when the root is
	if err != nil || !w.tracked(mangle.URIToPath(uri)) {
		w.workspace.CloseDocument(uri)
		return
	}
	version := 1
	if doc, ok := w.workspace.Document(uri); ok {
		version = doc.Version + 1
	}
	w.workspace.OpenDocument(uri, string(content), version)
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	exclude := w.runner.Config().Exclude
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(dir, p); err == nil && rel != "." {
			if matchAny(exclude, filepath.ToSlash(rel)+"/_") {
				return filepath.SkipDir
			}
		}
		return w.watcher.Add(p)
	})
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logging.WatchError("cannot watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".mg") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	logging.WatchDebug("%s event for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebouncedEvents checks the files that have settled past the
// debounce window. Deleted files are skipped and leave the workspace.
func (w *Watcher) processDebouncedEvents(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	var paths []string
	for _, p := range settled {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		} else {
			w.workspace.CloseDocument(mangle.PathToURI(p))
		}
	}
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	rep, err := w.runner.RunFiles(ctx, paths)
	if err != nil {
		if ctx.Err() == nil {
			logging.WatchError("check failed: %v", err)
		}
		return
	}

	for _, p := range paths {
		w.refresh(p)
	}
	w.mu.Lock()
	w.stats.Runs++
	w.mu.Unlock()
	if w.onReport != nil {
		w.onReport(rep)
	}
}

// Stats returns the current watcher statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Files returns the tracked files in sorted order.
func (w *Watcher) Files() []string {
	uris := w.workspace.URIs()
	out := make([]string, len(uris))
	for i, uri := range uris {
		out[i] = mangle.URIToPath(uri)
	}
	return out
}

// Summary counts the tracked files and those whose latest content has
// error findings.
func (w *Watcher) Summary() (files, failing int) {
	for _, uri := range w.workspace.URIs() {
		doc, ok := w.workspace.Document(uri)
		if !ok {
			continue
		}
		files++
		if doc.Analysis.HasErrors() {
			failing++
		}
	}
	return files, failing
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	dirs := w.watcher.WatchList()
	sort.Strings(dirs)
	return dirs
}
