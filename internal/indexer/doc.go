// Package indexer turns files into searchable documents.
//
// Every file is indexed under a scope of user, project and file path. The
// pipeline for one file is:
//
//  1. Route the file by extension to code, document or image handling.
//  2. Purge every document already stored for the scope.
//  3. Cut chunks: code is parsed into class and function definitions,
//     documents are extracted to text, images are described by the vision
//     capability.
//  4. Embed each chunk and upsert it as a document.
//
// Chunks are windows of at most chunker.ChunkSize lines. Line numbers are
// 0-based and absolute within the file (or the extracted text).
//
// # Failure Behavior
//
// Unsupported extensions, and images when no vision capability is
// configured, are rejected before the purge. Any later failure happens
// after the purge, so a failed re-index can leave a file with fewer
// documents than before, or none. Chunks written before a failing chunk
// are kept.
//
// There is no locking around a single file. Concurrent IndexFile calls for
// the same scope can interleave their purges and inserts.
//
// # Directory Indexing
//
// IndexDirectory walks a directory tree, skipping hidden and vendored
// directories and unsupported extensions, and indexes files concurrently
// with a bounded worker pool:
//
//	stats, err := idx.IndexDirectory(ctx, "alice", "demo", "/src/demo", &indexer.Config{
//	    Workers: 4,
//	})
//	fmt.Printf("indexed %d files (%d chunks), %d failed\n",
//	    stats.FilesIndexed, stats.ChunksCreated, stats.FilesFailed)
//
// Files that cannot be indexed in this configuration (images without a
// vision capability) are counted as skipped, not failed.
package indexer
