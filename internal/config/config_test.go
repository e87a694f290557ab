package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"MGREP_CONFIG", "MGREP_USER_ID", "MGREP_STORE_BACKEND", "MGREP_STORE_PATH",
		"ES_INDEX", "MGREP_COLLECTION", "MGREP_EMBEDDING_PROVIDER", "MODEL_NAME",
		"MGREP_EMBEDDING_BASE_URL", "OPENAI_API_KEY", "MGREP_EMBEDDING_DIMENSION",
		"FEATHERLESS_API_KEY", "FEATHERLESS_BASE_URL", "FEATHERLESS_VISION_MODEL",
		"MGREP_WORKERS", "MGREP_LOG_LEVEL", "MGREP_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "local", cfg.UserID)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "codesearch_index", cfg.Store.Collection)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.Embedding.Model)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
	assert.Equal(t, "https://api.featherless.ai/v1", cfg.Vision.BaseURL)
	assert.Equal(t, "google/gemma-3-27b-it", cfg.Vision.Model)
	assert.Equal(t, 3, cfg.Vision.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Vision.RetryDelay.Duration)
	assert.Equal(t, 1024, cfg.Vision.MaxImageSize)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	assert.Equal(t, 100, cfg.Search.CandidateLimit)
	assert.InDelta(t, 0.1, cfg.Search.MinSimilarity, 1e-9)
	assert.Positive(t, cfg.Index.Workers)
}

func TestLoad_DefaultPathMissingIsFine(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.UserID)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".mgrep"), cfg.Store.Path)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
user_id = "alice"

[store]
backend = "bleve"
path = "/var/lib/mgrep"
collection = "team_index"

[embedding]
provider = "openai"
model = "text-embedding-3-small"
api_key = "sk-test"
dimension = 1536

[vision]
api_key = "fl-test"
retry_delay = "500ms"
max_retries = 5

[search]
default_top_k = 10

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, "bleve", cfg.Store.Backend)
	assert.Equal(t, "/var/lib/mgrep", cfg.Store.Path)
	assert.Equal(t, "team_index", cfg.Store.Collection)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 500*time.Millisecond, cfg.Vision.RetryDelay.Duration)
	assert.Equal(t, 5, cfg.Vision.MaxRetries)
	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, 100, cfg.Search.CandidateLimit) // untouched default
	assert.Equal(t, "debug", cfg.Log.Level)

	vc := cfg.VisionConfig()
	assert.Equal(t, "fl-test", vc.APIKey)
	assert.Equal(t, 5, vc.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, vc.Retry.BaseDelay)
	assert.Equal(t, 1024, vc.Image.MaxSize)

	ec := cfg.EmbedderConfig()
	assert.Equal(t, "sk-test", ec.APIKey)
	assert.Equal(t, "text-embedding-3-small", ec.Model)

	sc := cfg.SearcherConfig()
	assert.Equal(t, 10, sc.DefaultTopK)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
user_id = "alice"
[store]
collection = "from_file"
`)
	t.Setenv("MGREP_USER_ID", "bob")
	t.Setenv("ES_INDEX", "from_es_index")
	t.Setenv("MODEL_NAME", "custom-model")
	t.Setenv("FEATHERLESS_API_KEY", "fl-env")
	t.Setenv("MGREP_STORE_PATH", "~/data")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.UserID)
	assert.Equal(t, "from_es_index", cfg.Store.Collection)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, "fl-env", cfg.Vision.APIKey)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "data"), cfg.Store.Path)

	// MGREP_COLLECTION wins over ES_INDEX
	t.Setenv("MGREP_COLLECTION", "from_mgrep")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_mgrep", cfg.Store.Collection)
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `user_id = "carol"`)
	t.Setenv("MGREP_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "carol", cfg.UserID)
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, `user_id = `))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[vision]\nretry_delay = \"soon\""))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty user", func(c *Config) { c.UserID = "" }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"bad collection", func(c *Config) { c.Store.Collection = "Bad Name" }},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "jina" }},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"zero retries", func(c *Config) { c.Vision.MaxRetries = 0 }},
		{"zero top k", func(c *Config) { c.Search.DefaultTopK = 0 }},
		{"zero candidates", func(c *Config) { c.Search.CandidateLimit = 0 }},
		{"similarity above one", func(c *Config) { c.Search.MinSimilarity = 1.5 }},
		{"similarity below minus one", func(c *Config) { c.Search.MinSimilarity = -2 }},
		{"zero workers", func(c *Config) { c.Index.Workers = 0 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
