package embedder

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	Dimension         int
	CacheSize         int
	RequestsPerSecond float64
}

// New creates an embedder with explicit configuration. Every provider gets
// an LRU cache; CacheSize <= 0 selects DefaultCacheSize.
func New(cfg Config, logger *slog.Logger) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimension:         cfg.Dimension,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, cache, logger)
	case ProviderLocal, "":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = LocalDimension
		}
		return NewLocalProviderWithDimension(dim, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
