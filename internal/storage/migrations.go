package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
	},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Collection registry. Each collection owns a document table and an FTS5 index.
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    dimension INTEGER NOT NULL,
    schema_version TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// tableName maps a validated collection name to its document table. The
// prefix keeps collection names clear of SQL keywords.
func tableName(collection string) string {
	return "col_" + collection
}

// collectionDDL returns the statements creating a collection's tables.
// name is a table name from tableName.
func collectionDDL(name string) string {
	const tmpl = `
CREATE TABLE IF NOT EXISTS {c} (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    project_name TEXT NOT NULL,
    file_path TEXT NOT NULL,
    content_type TEXT NOT NULL,
    language TEXT,
    class_name TEXT,
    function_name TEXT,
    code_content TEXT NOT NULL,
    embedding BLOB,
    line_start INTEGER,
    line_end INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS {c}_scope ON {c}(user_id, project_name, file_path);
CREATE INDEX IF NOT EXISTS {c}_file ON {c}(file_path);

-- Full-text search over content and definition names
CREATE VIRTUAL TABLE IF NOT EXISTS {c}_fts USING fts5(
    code_content, function_name, class_name,
    content='{c}',
    content_rowid='seq'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS {c}_ai AFTER INSERT ON {c} BEGIN
    INSERT INTO {c}_fts(rowid, code_content, function_name, class_name)
    VALUES (new.seq, new.code_content, new.function_name, new.class_name);
END;

CREATE TRIGGER IF NOT EXISTS {c}_ad AFTER DELETE ON {c} BEGIN
    INSERT INTO {c}_fts({c}_fts, rowid, code_content, function_name, class_name)
    VALUES ('delete', old.seq, old.code_content, old.function_name, old.class_name);
END;

CREATE TRIGGER IF NOT EXISTS {c}_au AFTER UPDATE ON {c} BEGIN
    INSERT INTO {c}_fts({c}_fts, rowid, code_content, function_name, class_name)
    VALUES ('delete', old.seq, old.code_content, old.function_name, old.class_name);
    INSERT INTO {c}_fts(rowid, code_content, function_name, class_name)
    VALUES (new.seq, new.code_content, new.function_name, new.class_name);
END;
`
	return strings.ReplaceAll(tmpl, "{c}", name)
}

// dropCollectionDDL returns the statements removing a collection's tables
func dropCollectionDDL(name string) string {
	const tmpl = `
DROP TRIGGER IF EXISTS {c}_au;
DROP TRIGGER IF EXISTS {c}_ad;
DROP TRIGGER IF EXISTS {c}_ai;
DROP TABLE IF EXISTS {c}_fts;
DROP TABLE IF EXISTS {c};
`
	return strings.ReplaceAll(tmpl, "{c}", name)
}

// currentVersion reads the applied schema version, 0.0.0 when none
func currentVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	var versions []*semver.Version
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", s, err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	latest := semver.MustParse("0.0.0")
	for _, v := range versions {
		if v.GreaterThan(latest) {
			latest = v
		}
	}
	return latest, nil
}

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		current = migrationVersion
	}

	return nil
}
