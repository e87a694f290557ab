package searcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/pkg/types"
)

// VectorStage ranks a bounded candidate set by cosine similarity. The
// candidates are the first CandidateLimit documents in scope, so documents
// past the limit are never considered.
type VectorStage struct {
	store          storage.Store
	collection     string
	candidateLimit int
	minSimilarity  float64
}

// NewVectorStage creates the client-side vector ranking stage. A zero
// MinSimilarity selects DefaultMinSimilarity; -1 keeps every candidate.
func NewVectorStage(store storage.Store, collection string, cfg Config) *VectorStage {
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = DefaultCandidateLimit
	}
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	return &VectorStage{
		store:          store,
		collection:     collection,
		candidateLimit: cfg.CandidateLimit,
		minSimilarity:  cfg.MinSimilarity,
	}
}

func (v *VectorStage) Mode() Mode { return ModeVector }

// Run fetches candidates and keeps the TopK most similar above the threshold
func (v *VectorStage) Run(ctx context.Context, req Request, query []float32) ([]types.SearchResult, error) {
	docs, err := v.store.FetchFiltered(ctx, v.collection, req.Filters(), v.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	candidates := make([]candidate, len(docs))
	for i := range docs {
		candidates[i] = candidate{
			doc:   docs[i],
			score: cosineSimilarity(query, docs[i].Embedding),
		}
	}
	sortCandidates(candidates)

	results := make([]types.SearchResult, 0, req.TopK)
	for _, c := range candidates {
		if c.score < v.minSimilarity || len(results) == req.TopK {
			break
		}
		results = append(results, types.SearchResult{
			Document: c.doc.WithoutEmbedding(),
			Rank:     len(results) + 1,
			Score:    c.score,
		})
	}
	return results, nil
}

// LexicalStage asks the store for full-text matches over code content and
// definition names
type LexicalStage struct {
	store      storage.Store
	collection string
	fields     []string
}

// NewLexicalStage creates the store-side lexical stage
func NewLexicalStage(store storage.Store, collection string) *LexicalStage {
	return &LexicalStage{
		store:      store,
		collection: collection,
		fields:     storage.LexicalFields,
	}
}

func (l *LexicalStage) Mode() Mode { return ModeLexical }

// Run returns store hits in store relevance order
func (l *LexicalStage) Run(ctx context.Context, req Request, _ []float32) ([]types.SearchResult, error) {
	hits, err := l.store.SearchLexical(ctx, l.collection, req.Filters(), l.fields, req.Query, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	results := make([]types.SearchResult, 0, len(hits))
	for i, hit := range hits {
		results = append(results, types.SearchResult{
			Document: hit.Document.WithoutEmbedding(),
			Rank:     i + 1,
			Score:    hit.Score,
		})
	}
	return results, nil
}

// candidate is a document with its similarity score
type candidate struct {
	doc   types.Document
	score float64
}

// sortCandidates sorts by score descending; ties keep fetch order
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// cosineSimilarity returns dot/(|a||b|), or 0 when the lengths differ or
// either vector has zero norm
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
