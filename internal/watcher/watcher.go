// Package watcher keeps a project's index in step with a directory tree.
//
// Files that are created or written are re-indexed after a short quiet
// period; files that are removed or renamed away are purged. Paths are
// stored relative to the watched root, the same way directory indexing
// stores them, so a watch session continues where an index run left off.
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
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/mgrep/internal/indexer"
	"github.com/dshills/mgrep/internal/router"
)

// DefaultDebounce is the quiet period before a changed file is re-indexed
const DefaultDebounce = 500 * time.Millisecond

// FileIndexer is the part of *indexer.Indexer the watcher drives
type FileIndexer interface {
	IndexFile(ctx context.Context, userID, projectName, filePath string, content []byte) (*indexer.Result, error)
	RemoveFile(ctx context.Context, userID, projectName, filePath string) (int, error)
}

// Config selects what is watched and on whose behalf
type Config struct {
	UserID        string
	ProjectName   string
	Root          string
	IncludeVendor bool
	Debounce      time.Duration
}

type action int

const (
	actionIndex action = iota
	actionRemove
)

// Watcher re-indexes files under Config.Root as they change
type Watcher struct {
	idx    FileIndexer
	cfg    Config
	fs     *fsnotify.Watcher
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]action
	timer   *time.Timer
	flushCh chan struct{}
}

// New creates a watcher and registers every non-skipped directory under root
func New(idx FileIndexer, cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserID == "" || cfg.ProjectName == "" || cfg.Root == "" {
		return nil, errors.New("watcher needs a user, a project and a root")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", cfg.Root, err)
	}
	cfg.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		idx:     idx,
		cfg:     cfg,
		fs:      fsw,
		logger:  logger,
		pending: make(map[string]action),
		flushCh: make(chan struct{}, 1),
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and all of its subdirectories that indexing would visit
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.cfg.Root && indexer.SkipDir(d.Name(), w.cfg.IncludeVendor) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes filesystem events until ctx is cancelled. Pending changes
// are flushed before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	w.logger.Info("watching", "root", w.cfg.Root, "user_id", w.cfg.UserID, "project", w.cfg.ProjectName)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			w.flush(context.WithoutCancel(ctx))
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-w.flushCh:
			w.flush(ctx)
		}
	}
}

// handleEvent records the change and restarts the debounce timer
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && !indexer.SkipDir(info.Name(), w.cfg.IncludeVendor) {
				w.addNewDir(path)
			}
			return
		}
		if !w.accepts(path) {
			return
		}
		w.enqueue(path, actionIndex)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if !w.accepts(path) {
			return
		}
		w.enqueue(path, actionRemove)
	}
}

// addNewDir watches a freshly created directory and queues the files it
// already holds, since their create events may predate the watch
func (w *Watcher) addNewDir(dir string) {
	if err := w.addTree(dir); err != nil {
		w.logger.Warn("failed to watch new directory", "dir", dir, "error", err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && indexer.SkipDir(d.Name(), w.cfg.IncludeVendor) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.accepts(path) {
			w.enqueue(path, actionIndex)
		}
		return nil
	})
}

// accepts reports whether path is a routable file inside a watched directory
func (w *Watcher) accepts(path string) bool {
	if !router.IsSupported(path) {
		return false
	}
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		return false
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return true
	}
	for d := dir; d != "." && d != string(filepath.Separator); d = filepath.Dir(d) {
		if indexer.SkipDir(filepath.Base(d), w.cfg.IncludeVendor) {
			return false
		}
	}
	return true
}

func (w *Watcher) enqueue(path string, a action) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = a
	if w.timer == nil {
		w.timer = time.AfterFunc(w.cfg.Debounce, w.signalFlush)
		return
	}
	w.timer.Reset(w.cfg.Debounce)
}

func (w *Watcher) signalFlush() {
	select {
	case w.flushCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// flush applies every pending change
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]action)
	w.mu.Unlock()

	for path, a := range batch {
		if ctx.Err() != nil {
			return
		}
		w.apply(ctx, path, a)
	}
}

func (w *Watcher) apply(ctx context.Context, path string, a action) {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if a == actionIndex {
		content, err := os.ReadFile(path)
		if err == nil {
			result, err := w.idx.IndexFile(ctx, w.cfg.UserID, w.cfg.ProjectName, rel, content)
			if err != nil {
				w.logger.Warn("re-index failed", "file", rel, "error", err)
				return
			}
			w.logger.Info("re-indexed", "file", rel, "chunks", result.ChunksIndexed, "purged", result.Purged)
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("failed to read file", "file", rel, "error", err)
			return
		}
		// Gone before the quiet period ended
	}

	n, err := w.idx.RemoveFile(ctx, w.cfg.UserID, w.cfg.ProjectName, rel)
	if err != nil {
		w.logger.Warn("purge failed", "file", rel, "error", err)
		return
	}
	w.logger.Info("purged", "file", rel, "documents", n)
}
