// Package embedder generates vector embeddings for chunks and queries.
//
// The same Embedder instance is used for indexing and for retrieval so that
// stored documents and queries share one vector space.
//
// # Providers
//
// Two providers are supported:
//
//   - local: deterministic feature-hashed term vectors (384 dimensions by
//     default). No network access; texts that share words score higher under
//     cosine similarity.
//   - openai: any OpenAI-compatible embeddings endpoint through go-openai.
//     BaseURL points it at a self-hosted server, for example one serving
//     all-MiniLM-L6-v2.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    BaseURL:   "http://localhost:8080/v1",
//	    Model:     "all-MiniLM-L6-v2",
//	    Dimension: 384,
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vec, err := embedder.Embed(ctx, emb, "parse configuration file")
//
// # Caching
//
// Embeddings are cached in an LRU keyed by SHA-256 of model and text. Get
// returns deep copies so callers cannot corrupt cached vectors.
//
// # Retries and Rate Limiting
//
// The openai provider classifies failures with the retry package: HTTP 429
// and 5xx overload responses are retried with exponential backoff, all other
// errors surface immediately. RequestsPerSecond enables a client-side token
// bucket limiter (golang.org/x/time/rate).
//
// # Dimension Checks
//
// Every response is checked against the configured dimension. A mismatch
// returns ErrDimensionMismatch instead of silently storing vectors the
// collection cannot rank.
package embedder
