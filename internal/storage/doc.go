// Package storage persists indexed documents in named collections.
//
// A collection is created with a Schema fixing the embedding dimension and
// the document layout version. Documents are scoped by user, project and
// file path; every read and bulk delete takes a types.Filters value whose
// set fields are combined as an exact-match conjunction.
//
// # Backends
//
// Two Store implementations are provided:
//
//   - SQLiteStore: one table per collection with an FTS5 index kept in sync
//     by triggers. Lexical search ranks with bm25.
//   - BleveStore: one bleve index per collection. Scope fields are indexed
//     as keywords and lexical fields are analyzed text.
//
// Vector similarity is not computed here. FetchFiltered returns candidate
// documents with their embeddings in insertion order and the caller ranks
// them.
//
// # Build Tags
//
// The SQLite backend uses modernc.org/sqlite by default. Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5" ./...
//
// # Usage
//
//	store, err := storage.Open(storage.BackendSQLite, "~/.mgrep", logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Create(ctx, "codesearch_index", storage.Schema{
//	    Dimension: 384,
//	    Version:   storage.CollectionSchemaVersion,
//	})
//
//	docs, err := store.FetchFiltered(ctx, "codesearch_index", types.Filters{
//	    UserID:      "alice",
//	    ProjectName: "demo",
//	}, 100)
package storage
