package types

// SearchResult is a single ranked hit returned by the retrieval pipeline
type SearchResult struct {
	Document Document `json:"document"`
	Rank     int      `json:"rank"`  // Position in result set (1-based)
	Score    float64  `json:"score"` // Cosine similarity or store relevance, never blended
}
