package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/mgrep/internal/router"
)

// ErrIndexingInProgress is returned when a directory run for the same user
// and project is already active
var ErrIndexingInProgress = errors.New("indexing already in progress for this project")

// Config contains configuration for directory indexing
type Config struct {
	Workers       int  // Number of concurrent workers (default: runtime.NumCPU())
	IncludeVendor bool // Whether to index vendor and node_modules (default: false)
}

// Statistics contains statistics about a directory indexing run
type Statistics struct {
	FilesIndexed    int           `json:"files_indexed"`
	FilesSkipped    int           `json:"files_skipped"`
	FilesFailed     int           `json:"files_failed"`
	ChunksCreated   int           `json:"chunks_created"`
	DocumentsPurged int           `json:"documents_purged"`
	Duration        time.Duration `json:"duration"`
	ErrorMessages   []string      `json:"error_messages,omitempty"`
}

// IndexDirectory indexes every supported file under root. Each file is
// stored with its slash-separated path relative to root. Failures of single
// files are collected in the statistics and do not stop the run.
func (idx *Indexer) IndexDirectory(ctx context.Context, userID, projectName, root string, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = defaultWorkers()
	}
	if _, err := validateScope(userID, projectName, root); err != nil {
		return nil, err
	}

	key := userID + "\x00" + projectName
	if !idx.dirLocks.tryAcquire(key) {
		return nil, ErrIndexingInProgress
	}
	defer idx.dirLocks.release(key)

	startTime := time.Now()

	files, err := discoverFiles(root, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	idx.logger.Info("indexing directory",
		"user_id", userID, "project", projectName, "root", root,
		"files", len(files), "workers", config.Workers)

	stats := &Statistics{ErrorMessages: make([]string, 0)}

	var (
		indexed, skipped, failed, chunks, purged int32
		mu                                       sync.Mutex // Protect stats.ErrorMessages
	)

	semaphore := make(chan struct{}, config.Workers)
	g, gctx := errgroup.WithContext(ctx)

	for _, path := range files {

		select {
		case <-gctx.Done():
		case semaphore <- struct{}{}:
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			defer func() { <-semaphore }()

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			content, err := os.ReadFile(path)
			if err == nil {
				var result *Result
				result, err = idx.IndexFile(gctx, userID, projectName, rel, content)
				if err == nil {
					atomic.AddInt32(&indexed, 1)
					atomic.AddInt32(&chunks, int32(result.ChunksIndexed))
					atomic.AddInt32(&purged, int32(result.Purged))
					return nil
				}
			}

			if isSkippable(err) {
				atomic.AddInt32(&skipped, 1)
				idx.logger.Debug("skipped file", "file", rel, "reason", err)
				return nil
			}

			atomic.AddInt32(&failed, 1)
			idx.logger.Warn("failed to index file", "file", rel, "error", err)
			mu.Lock()
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", rel, err))
			mu.Unlock()
			// Continue with other files
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.ChunksCreated = int(chunks)
	stats.DocumentsPurged = int(purged)
	stats.Duration = time.Since(startTime)

	idx.logger.Info("directory indexed",
		"root", root,
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"chunks", stats.ChunksCreated,
		"duration", stats.Duration)

	return stats, nil
}

// discoverFiles finds all routable files under root, in walk order
func discoverFiles(root string, config *Config) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && SkipDir(d.Name(), config.IncludeVendor) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !router.IsSupported(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// SkipDir reports whether a directory named name is excluded from indexing:
// hidden directories always, vendored dependencies unless includeVendor.
func SkipDir(name string, includeVendor bool) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if !includeVendor && (name == "vendor" || name == "node_modules") {
		return true
	}
	return false
}

// StoredPath names a single file indexed on its own: its slash-separated
// path relative to the working directory, or its base name when it lies
// outside it.
func StoredPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return filepath.Base(abs)
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(abs)
	}
	return filepath.ToSlash(rel)
}
