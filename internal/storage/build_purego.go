//go:build purego || !sqlite_cgo
// +build purego !sqlite_cgo

package storage

// Default build. Pure Go SQLite with FTS5 compiled in, no C compiler required.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
