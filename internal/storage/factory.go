package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// Supported store backends
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
)

// Open creates the store for backend rooted at dir. An empty dir opens an
// in-memory store.
func Open(backend, dir string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		path := ":memory:"
		if dir != "" {
			path = filepath.Join(dir, "mgrep.db")
		}
		return NewSQLiteStore(path, logger)
	case BackendBleve:
		if dir != "" {
			dir = filepath.Join(dir, "indexes")
		}
		return NewBleveStore(dir, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
