package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/mgrep/internal/embedder"
	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/pkg/types"
)

// Mode names the stage that produced a response
type Mode string

const (
	ModeVector  Mode = "vector"  // Cosine similarity over stored embeddings
	ModeLexical Mode = "lexical" // Store full-text relevance
)

// Defaults
const (
	DefaultTopK           = 5
	DefaultCandidateLimit = 100
	DefaultMinSimilarity  = 0.1
)

// Config tunes retrieval
type Config struct {
	DefaultTopK    int
	CandidateLimit int     // Documents fetched for client-side ranking
	MinSimilarity  float64 // Vector hits scoring below this are dropped; 0 means DefaultMinSimilarity
}

// DefaultConfig returns the standard retrieval settings
func DefaultConfig() Config {
	return Config{
		DefaultTopK:    DefaultTopK,
		CandidateLimit: DefaultCandidateLimit,
		MinSimilarity:  DefaultMinSimilarity,
	}
}

// Request contains parameters for a search operation
type Request struct {
	UserID      string
	Query       string
	ProjectName string // Optional; empty searches every project of the user
	TopK        int
}

// Filters returns the store scope for the request
func (r Request) Filters() types.Filters {
	return types.Filters{UserID: r.UserID, ProjectName: r.ProjectName}
}

// Response contains search results and metadata
type Response struct {
	Results        []types.SearchResult `json:"results"`
	Mode           Mode                 `json:"mode"`
	Duration       time.Duration        `json:"duration"`
	FallbackReason string               `json:"fallback_reason,omitempty"`
}

// Stage is one retrieval strategy. query is the request embedding; stages
// that do not rank by vector ignore it.
type Stage interface {
	Mode() Mode
	Run(ctx context.Context, req Request, query []float32) ([]types.SearchResult, error)
}

// Searcher runs the primary stage and falls back to the secondary stage
// only when the primary one fails
type Searcher struct {
	embedder embedder.Embedder
	primary  Stage
	fallback Stage
	cfg      Config
	logger   *slog.Logger
}

// New creates a Searcher with vector ranking backed by lexical fallback,
// both reading collection from store
func New(store storage.Store, emb embedder.Embedder, collection string, cfg Config, logger *slog.Logger) *Searcher {
	return NewWithStages(emb,
		NewVectorStage(store, collection, cfg),
		NewLexicalStage(store, collection),
		cfg, logger)
}

// NewWithStages creates a Searcher from explicit stages
func NewWithStages(emb embedder.Embedder, primary, fallback Stage, cfg Config, logger *slog.Logger) *Searcher {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder: emb,
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger.With("component", "searcher"),
	}
}

// Search embeds the query once and returns the ranked results of the first
// stage that succeeds. An empty primary result is a success.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	vector, err := embedder.Embed(ctx, s.embedder, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := s.primary.Run(ctx, req, vector)
	if err == nil {
		return s.respond(req, results, s.primary.Mode(), "", startTime), nil
	}

	s.logger.Warn("primary search stage failed, using fallback",
		"stage", s.primary.Mode(), "fallback", s.fallback.Mode(), "error", err)

	fallbackResults, fallbackErr := s.fallback.Run(ctx, req, vector)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: %s stage: %w; %s stage: %w",
			types.ErrSearchFailed, s.primary.Mode(), err, s.fallback.Mode(), fallbackErr)
	}

	return s.respond(req, fallbackResults, s.fallback.Mode(), err.Error(), startTime), nil
}

func (s *Searcher) respond(req Request, results []types.SearchResult, mode Mode, reason string, start time.Time) *Response {
	if results == nil {
		results = []types.SearchResult{}
	}
	resp := &Response{
		Results:        results,
		Mode:           mode,
		Duration:       time.Since(start),
		FallbackReason: reason,
	}
	s.logger.Debug("search complete",
		"user_id", req.UserID, "project", req.ProjectName, "mode", mode,
		"results", len(results), "duration", resp.Duration)
	return resp
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", types.ErrInvalidInput)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: user_id is required", types.ErrInvalidInput)
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.DefaultTopK
	}
	return nil
}
