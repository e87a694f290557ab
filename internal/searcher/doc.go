// Package searcher implements scoped natural-language search over indexed
// documents.
//
// Retrieval runs in two stages behind the Stage interface:
//
//   - Vector (primary): fetch up to CandidateLimit documents in scope, rank
//     them by cosine similarity to the query embedding, drop hits below
//     MinSimilarity and keep the top K.
//   - Lexical (fallback): full-text search over code content and definition
//     names, ranked by the store.
//
// The fallback runs only when the primary stage returns an error. An empty
// primary result is returned as is. Scores from the two stages are never
// mixed; Response.Mode tells the caller which one produced the results.
//
// The query is embedded once per search. A failing embedder ends the search
// without trying the fallback.
//
// # Basic Usage
//
//	s := searcher.New(store, emb, "codesearch_index", searcher.DefaultConfig(), logger)
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    UserID:      "alice",
//	    ProjectName: "demo",
//	    Query:       "where are passwords hashed",
//	    TopK:        5,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.2f)\n", r.Rank, r.Document.FilePath, r.Score)
//	}
package searcher
