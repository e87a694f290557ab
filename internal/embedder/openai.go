package embedder

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/dshills/mgrep/internal/retry"
)

// MaxBatchSize bounds the number of inputs per embeddings request
const MaxBatchSize = 100

// embeddingsClient is the subset of *openai.Client used here
type embeddingsClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string // empty for api.openai.com
	Model             string
	Dimension         int     // expected vector size, checked on every response
	RequestsPerSecond float64 // 0 disables client-side rate limiting
	Retry             retry.Config
}

// OpenAIProvider implements Embedder against any OpenAI-compatible
// embeddings API, including self-hosted sentence-transformer servers.
type OpenAIProvider struct {
	client    embeddingsClient
	model     string
	dimension int
	limiter   *rate.Limiter
	retry     retry.Config
	cache     *Cache
	logger    *slog.Logger
}

// NewOpenAIProvider creates an embedder from cfg
func NewOpenAIProvider(cfg OpenAIConfig, cache *Cache, logger *slog.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProviderEnabled)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return newOpenAIProvider(openai.NewClientWithConfig(clientCfg), cfg, cache, logger)
}

func newOpenAIProvider(client embeddingsClient, cfg OpenAIConfig, cache *Cache, logger *slog.Logger) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrUnsupportedModel)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrUnsupportedModel, cfg.Dimension)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &OpenAIProvider{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		retry:     cfg.Retry,
		cache:     cache,
		logger:    logger.With("component", "embedder", "provider", ProviderOpenAI),
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return p, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := o.modelFor(req.Model)
	hash := ComputeHash(model, req.Text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := o.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := o.modelFor(req.Model)

	embeddings, err := retry.Do(ctx, o.retry, func(ctx context.Context) ([]*Embedding, error) {
		return o.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	if o.cache != nil {
		for i, emb := range embeddings {
			emb.Hash = ComputeHash(model, req.Texts[i])
			o.cache.Set(emb.Hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      model,
	}, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		o.logger.Warn("embeddings request failed", "model", model, "texts", len(texts), "error", err)
		return nil, retry.FromOpenAI(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(resp.Data), len(texts))
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, data.Index)
		}
		if len(data.Embedding) != o.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(data.Embedding), o.dimension)
		}

		vector := make([]float32, len(data.Embedding))
		for i := range data.Embedding {
			vector[i] = float32(data.Embedding[i])
		}

		embeddings[data.Index] = &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOpenAI,
			Model:     model,
		}
	}

	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: missing embedding for text %d", ErrProviderFailed, i)
		}
	}

	return embeddings, nil
}

func (o *OpenAIProvider) modelFor(override string) string {
	if override != "" {
		return override
	}
	return o.model
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
