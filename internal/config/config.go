// Package config loads mgrep settings. Sources are layered, later ones
// winning: built-in defaults, a TOML file, a .env file, the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/mgrep/internal/embedder"
	"github.com/dshills/mgrep/internal/logging"
	"github.com/dshills/mgrep/internal/retry"
	"github.com/dshills/mgrep/internal/searcher"
	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/internal/vision"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults
const (
	DefaultUserID         = "local"
	DefaultCollection     = "codesearch_index"
	DefaultEmbeddingModel = "all-MiniLM-L6-v2"
	DefaultDirName        = ".mgrep"
	DefaultConfigFile     = "config.toml"
)

// Duration is a time.Duration written as a string ("2s") in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete application configuration
type Config struct {
	UserID    string          `toml:"user_id"`
	Store     StoreConfig     `toml:"store"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Vision    VisionConfig    `toml:"vision"`
	Search    SearchConfig    `toml:"search"`
	Index     IndexConfig     `toml:"index"`
	Log       LogConfig       `toml:"log"`
}

// StoreConfig selects the document store
type StoreConfig struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	Collection string `toml:"collection"`
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider          string  `toml:"provider"`
	Model             string  `toml:"model"`
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Dimension         int     `toml:"dimension"`
	CacheSize         int     `toml:"cache_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// VisionConfig configures the image description endpoint. An empty API key
// disables image indexing.
type VisionConfig struct {
	APIKey            string   `toml:"api_key"`
	BaseURL           string   `toml:"base_url"`
	Model             string   `toml:"model"`
	MaxRetries        int      `toml:"max_retries"`
	RetryDelay        Duration `toml:"retry_delay"`
	MaxImageSize      int      `toml:"max_image_size"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// SearchConfig tunes retrieval
type SearchConfig struct {
	DefaultTopK    int     `toml:"default_top_k"`
	CandidateLimit int     `toml:"candidate_limit"`
	MinSimilarity  float64 `toml:"min_similarity"`
}

// IndexConfig tunes directory indexing
type IndexConfig struct {
	Workers int `toml:"workers"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		UserID: DefaultUserID,
		Store: StoreConfig{
			Backend:    storage.BackendSQLite,
			Path:       filepath.Join("~", DefaultDirName),
			Collection: DefaultCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:  embedder.ProviderLocal,
			Model:     DefaultEmbeddingModel,
			Dimension: embedder.LocalDimension,
			CacheSize: embedder.DefaultCacheSize,
		},
		Vision: VisionConfig{
			BaseURL:      vision.DefaultBaseURL,
			Model:        vision.DefaultModel,
			MaxRetries:   retry.DefaultConfig().MaxAttempts,
			RetryDelay:   Duration{retry.DefaultConfig().BaseDelay},
			MaxImageSize: vision.DefaultMaxImageSize,
		},
		Search: SearchConfig{
			DefaultTopK:    searcher.DefaultTopK,
			CandidateLimit: searcher.DefaultCandidateLimit,
			MinSimilarity:  searcher.DefaultMinSimilarity,
		},
		Index: IndexConfig{
			Workers: runtime.NumCPU(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatJSON,
		},
	}
}

// DefaultPath returns the config file location used when none is given:
// $MGREP_CONFIG, else ~/.mgrep/config.toml
func DefaultPath() string {
	if p := os.Getenv("MGREP_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultDirName, DefaultConfigFile)
}

// Load builds the configuration. An explicit path must exist; the default
// path is optional. A .env file in the working directory is loaded into the
// environment without overriding variables that are already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	// Missing .env is fine
	_ = godotenv.Load()

	cfg.applyEnv()

	expanded, err := expandHome(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	cfg.Store.Path = expanded

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables
func (c *Config) applyEnv() {
	setString(&c.UserID, "MGREP_USER_ID")

	setString(&c.Store.Backend, "MGREP_STORE_BACKEND")
	setString(&c.Store.Path, "MGREP_STORE_PATH")
	setString(&c.Store.Collection, "ES_INDEX")
	setString(&c.Store.Collection, "MGREP_COLLECTION")

	setString(&c.Embedding.Provider, "MGREP_EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "MODEL_NAME")
	setString(&c.Embedding.BaseURL, "MGREP_EMBEDDING_BASE_URL")
	setString(&c.Embedding.APIKey, "OPENAI_API_KEY")
	setInt(&c.Embedding.Dimension, "MGREP_EMBEDDING_DIMENSION")

	setString(&c.Vision.APIKey, "FEATHERLESS_API_KEY")
	setString(&c.Vision.BaseURL, "FEATHERLESS_BASE_URL")
	setString(&c.Vision.Model, "FEATHERLESS_VISION_MODEL")

	setInt(&c.Index.Workers, "MGREP_WORKERS")

	setString(&c.Log.Level, "MGREP_LOG_LEVEL")
	setString(&c.Log.Format, "MGREP_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate rejects unknown backends and providers and non-positive limits
func (c *Config) Validate() error {
	var problems []string

	if c.UserID == "" {
		problems = append(problems, "user_id must not be empty")
	}

	switch c.Store.Backend {
	case storage.BackendSQLite, storage.BackendBleve:
	default:
		problems = append(problems, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if err := storage.ValidateCollectionName(c.Store.Collection); err != nil {
		problems = append(problems, err.Error())
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case embedder.ProviderLocal:
	case embedder.ProviderOpenAI:
		if c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
			problems = append(problems, "openai embedding provider needs an api key or base_url")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		problems = append(problems, "embedding.dimension must be positive")
	}
	if c.Embedding.RequestsPerSecond < 0 {
		problems = append(problems, "embedding.requests_per_second must not be negative")
	}

	if c.Vision.MaxRetries <= 0 {
		problems = append(problems, "vision.max_retries must be positive")
	}
	if c.Vision.RetryDelay.Duration < 0 {
		problems = append(problems, "vision.retry_delay must not be negative")
	}
	if c.Vision.MaxImageSize <= 0 {
		problems = append(problems, "vision.max_image_size must be positive")
	}

	if c.Search.DefaultTopK <= 0 {
		problems = append(problems, "search.default_top_k must be positive")
	}
	if c.Search.CandidateLimit <= 0 {
		problems = append(problems, "search.candidate_limit must be positive")
	}
	if c.Search.MinSimilarity < -1 || c.Search.MinSimilarity > 1 {
		problems = append(problems, "search.min_similarity must be between -1 and 1")
	}
	if c.Index.Workers <= 0 {
		problems = append(problems, "index.workers must be positive")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatText:
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// EmbedderConfig returns the settings for embedder.New
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:          c.Embedding.Provider,
		Model:             c.Embedding.Model,
		APIKey:            c.Embedding.APIKey,
		BaseURL:           c.Embedding.BaseURL,
		Dimension:         c.Embedding.Dimension,
		CacheSize:         c.Embedding.CacheSize,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
	}
}

// VisionConfig returns the settings for vision.FromConfig
func (c *Config) VisionConfig() vision.Config {
	r := retry.DefaultConfig()
	r.MaxAttempts = c.Vision.MaxRetries
	r.BaseDelay = c.Vision.RetryDelay.Duration

	return vision.Config{
		APIKey:            c.Vision.APIKey,
		BaseURL:           c.Vision.BaseURL,
		Model:             c.Vision.Model,
		MaxTokens:         vision.DefaultMaxTokens,
		Temperature:       vision.DefaultTemperature,
		RequestsPerSecond: c.Vision.RequestsPerSecond,
		Image:             vision.ImageOptions{MaxSize: c.Vision.MaxImageSize},
		Retry:             r,
	}
}

// SearcherConfig returns the settings for searcher.New
func (c *Config) SearcherConfig() searcher.Config {
	return searcher.Config{
		DefaultTopK:    c.Search.DefaultTopK,
		CandidateLimit: c.Search.CandidateLimit,
		MinSimilarity:  c.Search.MinSimilarity,
	}
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
