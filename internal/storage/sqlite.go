package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/mgrep/pkg/types"
)

// SQLiteStore implements Store using SQLite with an FTS5 index per collection
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; it also keeps :memory: on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies migrations
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "storage", "backend", "sqlite", "build", BuildMode),
	}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Collection operations

func (s *SQLiteStore) Exists(ctx context.Context, collection string) (bool, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE name = ?", collection).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, schema Schema) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if err := schema.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE name = ?", collection).Scan(&one)
	if err == nil {
		return fmt.Errorf("collection %s: %w", collection, ErrAlreadyExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections (name, dimension, schema_version) VALUES (?, ?, ?)",
		collection, schema.Dimension, schema.Version); err != nil {
		return fmt.Errorf("failed to register collection: %w", err)
	}

	if _, err := tx.ExecContext(ctx, collectionDDL(tableName(collection))); err != nil {
		return fmt.Errorf("failed to create collection tables: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection: %w", err)
	}

	s.logger.Info("created collection", "collection", collection, "dimension", schema.Dimension, "schema_version", schema.Version)
	return nil
}

func (s *SQLiteStore) Describe(ctx context.Context, collection string) (*Schema, error) {
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	var schema Schema
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension, schema_version FROM collections WHERE name = ?", collection,
	).Scan(&schema.Dimension, &schema.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe collection: %w", err)
	}
	return &schema, nil
}

func (s *SQLiteStore) Drop(ctx context.Context, collection string) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection)
	if err != nil {
		return fmt.Errorf("failed to unregister collection: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	if _, err := tx.ExecContext(ctx, dropCollectionDDL(tableName(collection))); err != nil {
		return fmt.Errorf("failed to drop collection tables: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit drop: %w", err)
	}

	s.logger.Info("dropped collection", "collection", collection)
	return nil
}

// Document operations

const documentColumns = `id, user_id, project_name, file_path, content_type, language,
	class_name, function_name, code_content, embedding, line_start, line_end`

func (s *SQLiteStore) Upsert(ctx context.Context, collection string, doc *types.Document) error {
	schema, err := s.Describe(ctx, collection)
	if err != nil {
		return err
	}
	if err := prepareDocument(doc, schema); err != nil {
		return err
	}

	query := `
		INSERT INTO ` + tableName(collection) + ` (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			project_name = excluded.project_name,
			file_path = excluded.file_path,
			content_type = excluded.content_type,
			language = excluded.language,
			class_name = excluded.class_name,
			function_name = excluded.function_name,
			code_content = excluded.code_content,
			embedding = excluded.embedding,
			line_start = excluded.line_start,
			line_end = excluded.line_end
	`
	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.ProjectName, doc.FilePath, string(doc.ContentType),
		nullString(doc.Language), nullString(doc.ClassName), nullString(doc.FunctionName),
		doc.CodeContent, serializeVector(doc.Embedding),
		nullInt(doc.LineStart), nullInt(doc.LineEnd))
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) BulkDelete(ctx context.Context, collection string, filters types.Filters) (int, error) {
	if filters.IsEmpty() {
		return 0, ErrEmptyFilter
	}
	ok, err := s.Exists(ctx, collection)
	if err != nil || !ok {
		return 0, err
	}

	where, args := filterClause(filters, "")
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+tableName(collection)+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) FetchFiltered(ctx context.Context, collection string, filters types.Filters, limit int) ([]types.Document, error) {
	ok, err := s.Exists(ctx, collection)
	if err != nil || !ok {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // no limit
	}

	where, args := filterClause(filters, "")
	query := "SELECT " + documentColumns + " FROM " + tableName(collection) + where + " ORDER BY seq LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) SearchLexical(ctx context.Context, collection string, filters types.Filters, fields []string, query string, limit int) ([]ScoredDocument, error) {
	fields, err := validateFields(fields)
	if err != nil {
		return nil, err
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	ok, err := s.Exists(ctx, collection)
	if err != nil || !ok {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	table := tableName(collection)
	fts := table + "_fts"

	where, args := filterClause(filters, "d.")
	if where == "" {
		where = " WHERE "
	} else {
		where += " AND "
	}

	sqlQuery := `
		SELECT ` + prefixColumns("d.") + `, bm25(` + fts + `) AS score
		FROM ` + fts + `
		INNER JOIN ` + table + ` d ON d.seq = ` + fts + `.rowid` +
		where + fts + ` MATCH ?
		ORDER BY score LIMIT ?`
	args = append(args, buildFTSQuery(fields, terms), limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ScoredDocument
	for rows.Next() {
		var bm25 float64
		doc, err := scanDocument(rows, &bm25)
		if err != nil {
			return nil, err
		}
		// bm25() is lower-is-better; flip so higher means more relevant
		results = append(results, ScoredDocument{Document: *doc, Score: -bm25})
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, collection string, filters types.Filters) (int, error) {
	ok, err := s.Exists(ctx, collection)
	if err != nil || !ok {
		return 0, err
	}

	where, args := filterClause(filters, "")
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableName(collection)+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Helper functions

// filterClause builds a WHERE clause for the set filter fields
func filterClause(filters types.Filters, prefix string) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filters.UserID != "" {
		conds = append(conds, prefix+"user_id = ?")
		args = append(args, filters.UserID)
	}
	if filters.ProjectName != "" {
		conds = append(conds, prefix+"project_name = ?")
		args = append(args, filters.ProjectName)
	}
	if filters.FilePath != "" {
		conds = append(conds, prefix+"file_path = ?")
		args = append(args, filters.FilePath)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func prefixColumns(prefix string) string {
	cols := strings.Split(documentColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// scanDocument reads documentColumns plus any extra destinations
func scanDocument(rows *sql.Rows, extra ...interface{}) (*types.Document, error) {
	var (
		doc                           types.Document
		contentType                   string
		language, className, funcName sql.NullString
		embedding                     []byte
		lineStart, lineEnd            sql.NullInt64
	)

	dest := []interface{}{
		&doc.ID, &doc.UserID, &doc.ProjectName, &doc.FilePath, &contentType,
		&language, &className, &funcName, &doc.CodeContent, &embedding,
		&lineStart, &lineEnd,
	}
	dest = append(dest, extra...)

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.ContentType = types.ContentType(contentType)
	doc.Language = stringPtr(language)
	doc.ClassName = stringPtr(className)
	doc.FunctionName = stringPtr(funcName)
	doc.Embedding = deserializeVector(embedding)
	doc.LineStart = intPtr(lineStart)
	doc.LineEnd = intPtr(lineEnd)
	return &doc, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}
