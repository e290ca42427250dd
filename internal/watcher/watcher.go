package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrSyncRootDeleted is returned by Run when the sync root directory is
// removed or becomes inaccessible while a watch is active.
var ErrSyncRootDeleted = errors.New("watcher: sync root directory deleted or inaccessible")

const (
	safetyScanInterval = 5 * time.Minute
	errInitBackoff     = 1 * time.Second
	errMaxBackoff      = 30 * time.Second
	errBackoffMult     = 2
)

// Watcher monitors a sync root recursively, debouncing bursts of events per
// path and pairing moves within the debounce window. Grounded in the
// teacher's FsWatcher/LocalObserver split for testability.
type Watcher struct {
	syncRoot       string
	debounce       time.Duration
	logger         *slog.Logger
	watcherFactory func() (FsWatcher, error)
	droppedEvents  atomic.Int64
	rescanRequired atomic.Bool

	hashMu    sync.Mutex
	hashCache map[string]string // path -> content hash, for delete-side move pairing
}

// New creates a Watcher rooted at syncRoot, coalescing bursts within
// debounce into single batches.
func New(syncRoot string, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		syncRoot:       syncRoot,
		debounce:       debounce,
		logger:         logger,
		watcherFactory: newFsnotifyWatcher,
		hashCache:      make(map[string]string),
	}
}

// DroppedEvents returns the count of events dropped because the output
// channel was full; a non-zero count means the caller is falling behind and
// the periodic safety scan will need to catch up.
func (w *Watcher) DroppedEvents() int64 { return w.droppedEvents.Load() }

// RescanRequired reports whether the watcher has detected a condition (queue
// overflow, lost connection to the kernel facility) that invalidates its
// incremental view, requiring a fresh InitialScan.
func (w *Watcher) RescanRequired() bool { return w.rescanRequired.Load() }

// ClearRescanRequired resets the flag after the caller has performed a fresh
// InitialScan.
func (w *Watcher) ClearRescanRequired() { w.rescanRequired.Store(false) }

// Run watches the sync root and sends debounced, move-paired event batches
// to out until ctx is canceled. A periodic safety scan requests a rescan
// even without an explicit overflow, bounding how stale the incremental view
// can get.
func (w *Watcher) Run(ctx context.Context, out chan<- []Event) error {
	fw, err := w.watcherFactory()
	if err != nil {
		return fmt.Errorf("watcher: creating filesystem watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addWatchesRecursive(fw); err != nil {
		return fmt.Errorf("watcher: adding initial watches: %w", err)
	}

	buf := newBuffer(w.logger)

	debounced := make(chan []Event, 1)
	go buf.runDebounced(ctx, w.debounce, debounced)

	go func() {
		for batch := range debounced {
			select {
			case out <- batch:
			case <-ctx.Done():
				return
			default:
				w.droppedEvents.Add(int64(len(batch)))
				w.rescanRequired.Store(true)
				w.logger.Warn("debounced batch dropped, output channel full", slog.Int("events", len(batch)))
			}
		}
	}()

	return w.loop(ctx, fw, buf)
}

func (w *Watcher) loop(ctx context.Context, fw FsWatcher, buf *buffer) error {
	ticker := time.NewTicker(safetyScanInterval)
	defer ticker.Stop()

	backoff := errInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}

			w.handleFsEvent(ev, fw, buf)
			backoff = errInitBackoff

		case watchErr, ok := <-fw.Errors():
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error", slog.String("error", watchErr.Error()), slog.Duration("backoff", backoff))
			w.rescanRequired.Store(true)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}

			if !w.syncRootExists() {
				return ErrSyncRootDeleted
			}

			backoff *= errBackoffMult
			if backoff > errMaxBackoff {
				backoff = errMaxBackoff
			}

		case <-ticker.C:
			if !w.syncRootExists() {
				return ErrSyncRootDeleted
			}

			w.rescanRequired.Store(true)
		}
	}
}

func (w *Watcher) syncRootExists() bool {
	info, err := os.Stat(w.syncRoot)
	return err == nil && info.IsDir()
}

func (w *Watcher) addWatchesRecursive(fw FsWatcher) error {
	return filepath.WalkDir(w.syncRoot, func(fsPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("walk error during watch setup", slog.String("path", fsPath), slog.String("error", walkErr.Error()))
			return skipEntry(d)
		}

		if !d.IsDir() {
			return nil
		}

		name := d.Name()
		if fsPath != w.syncRoot && isExcluded(name) {
			return filepath.SkipDir
		}

		if err := fw.Add(fsPath); err != nil {
			w.logger.Warn("failed to add watch", slog.String("path", fsPath), slog.String("error", err.Error()))
		}

		return nil
	})
}

func (w *Watcher) handleFsEvent(ev fsnotify.Event, fw FsWatcher, buf *buffer) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	relPath, err := filepath.Rel(w.syncRoot, ev.Name)
	if err != nil {
		w.logger.Warn("failed to compute relative path", slog.String("path", ev.Name), slog.String("error", err.Error()))
		return
	}

	relPath = normalizePath(filepath.ToSlash(relPath))
	name := normalizePath(filepath.Base(ev.Name))

	if isExcluded(name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.handleCreate(ev.Name, relPath, fw, buf)

	case ev.Has(fsnotify.Write):
		w.handleWrite(ev.Name, relPath, buf)

	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.handleDelete(relPath, buf)
	}
}

func (w *Watcher) handleCreate(fsPath, relPath string, fw FsWatcher, buf *buffer) {
	info, err := os.Stat(fsPath)
	if err != nil {
		w.logger.Debug("stat failed for created path, may have disappeared already", slog.String("path", relPath))
		return
	}

	if info.IsDir() {
		if err := fw.Add(fsPath); err != nil {
			w.logger.Warn("failed to add watch for new directory", slog.String("path", relPath), slog.String("error", err.Error()))
		}

		buf.add(Event{Type: Created, Path: relPath, IsDir: true}, "")

		return
	}

	hash, err := hashFile(fsPath)
	if err != nil {
		w.logger.Warn("hashing new file failed", slog.String("path", relPath), slog.String("error", err.Error()))
		hash = ""
	}

	w.cacheHash(relPath, hash)
	buf.add(Event{Type: Created, Path: relPath}, hash)
}

func (w *Watcher) handleWrite(fsPath, relPath string, buf *buffer) {
	info, err := os.Stat(fsPath)
	if err != nil || info.IsDir() {
		// Directory mtime churn from a contained create/write is noise.
		return
	}

	if hash, err := hashFile(fsPath); err == nil {
		w.cacheHash(relPath, hash)
	}

	buf.add(Event{Type: Modified, Path: relPath}, "")
}

func (w *Watcher) handleDelete(relPath string, buf *buffer) {
	// The path is already gone by the time this event is processed, so the
	// content hash needed for move pairing comes from the cache populated by
	// the most recent Create/Write observed for this path, not a fresh stat.
	hash := w.popHash(relPath)

	// IsDir is unknowable once the path is gone; the sync engine resolves it
	// against the catalog, which still has the prior record.
	buf.add(Event{Type: Deleted, Path: relPath}, hash)
}

func (w *Watcher) cacheHash(relPath, hash string) {
	if hash == "" {
		return
	}

	w.hashMu.Lock()
	w.hashCache[relPath] = hash
	w.hashMu.Unlock()
}

func (w *Watcher) popHash(relPath string) string {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()

	hash := w.hashCache[relPath]
	delete(w.hashCache, relPath)

	return hash
}
