// Package chunker splits indexed content into fixed-size line windows.
//
// Every chunk holds at most ChunkSize (20) consecutive lines. Windows never
// overlap and a window whose text is only whitespace is dropped, so the
// remaining chunks keep the line numbers they would have had.
//
// # Code
//
// ChunkDefinitions works on parser output. Each definition is split with
// splitlines semantics and the window at index i covers
//
//	line_start = def.StartLine + i*ChunkSize
//	line_end   = line_start + len(window) - 1
//
// Source outside any class or function is not chunked.
//
// # Documents and Images
//
// ChunkText splits extracted document text on "\n" with line numbers relative
// to the whole text. ChunkCaption turns an image description into one chunk
// that carries no line range.
package chunker
