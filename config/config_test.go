package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/docrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 512, cfg.Chunking.MaxTokens)
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 96, cfg.Embedding.BatchSize)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Equal(t, float32(0.4), cfg.Retrieval.LowConfidenceThreshold)
	assert.Equal(t, 5, cfg.Agent.MaxToolCalls)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /tmp/docrag
site:
  roots: [https://docs.example.com]
chunking:
  max_tokens: 256
embedding:
  backend: gemini
  model: gemini-embedding-001
  api_key: file-key
  base_delay: 250ms
index:
  backend: qdrant
  qdrant:
    host: qdrant.internal
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/docrag", cfg.DataDir)
	assert.Equal(t, []string{"https://docs.example.com"}, cfg.Site.Roots)
	assert.Equal(t, 256, cfg.Chunking.MaxTokens)
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens, "unset fields keep defaults")
	assert.Equal(t, BackendGemini, cfg.Embedding.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Embedding.BaseDelay)
	assert.Equal(t, "qdrant.internal", cfg.Index.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Index.Qdrant.Port)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/docrag/badger", cfg.BadgerPath())
	assert.Equal(t, "/tmp/docrag/sessions.db", cfg.SessionPath())
}

func TestLoad_MissingFileAndBadYAML(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Chunking.MaxTokens)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("chunking: [1, 2"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.Generation.APIKey = "from-file"
	err := ApplyEnv(cfg, env(map[string]string{
		"DOCRAG_SITE_ROOTS":      "https://a.example.com, https://b.example.com ,",
		"DOCRAG_INDEX_BACKEND":   "qdrant",
		"DOCRAG_QDRANT_HOST":     "localhost",
		"DOCRAG_QDRANT_PORT":     "6335",
		"DOCRAG_QDRANT_TLS":      "true",
		"DOCRAG_SESSION_BACKEND": "sqlite",
		"DOCRAG_IN_MEMORY":       "1",
		"OPENAI_API_KEY":         " sk-test ",
		"QDRANT_API_KEY":         "qk",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Site.Roots)
	assert.Equal(t, BackendQdrant, cfg.Index.Backend)
	assert.Equal(t, 6335, cfg.Index.Qdrant.Port)
	assert.True(t, cfg.Index.Qdrant.UseTLS)
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	assert.True(t, cfg.InMemory)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "from-file", cfg.Generation.APIKey, "provider keys do not replace configured ones")
	assert.Equal(t, "qk", cfg.Index.Qdrant.APIKey)
}

func TestApplyEnv_GeminiKeyAndErrors(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, env(map[string]string{
		"DOCRAG_EMBEDDING_BACKEND": "gemini",
		"GEMINI_API_KEY":           "gk",
		"OPENAI_API_KEY":           "ok",
	})))
	assert.Equal(t, "gk", cfg.Embedding.APIKey)
	assert.Equal(t, "ok", cfg.Generation.APIKey)

	err := ApplyEnv(Default(), env(map[string]string{"DOCRAG_QDRANT_PORT": "high"}))
	assert.ErrorIs(t, err, core.ErrConfiguration)

	err = ApplyEnv(Default(), env(map[string]string{"DOCRAG_IN_MEMORY": "maybe"}))
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Config)
	}{
		{"data_dir", func(c *Config) { c.DataDir = "" }},
		{"site.roots", func(c *Config) { c.Site.Roots = []string{"ftp://x"} }},
		{"site.prefetch", func(c *Config) { c.Site.Prefetch = 0 }},
		{"chunking.overlap_tokens", func(c *Config) { c.Chunking.OverlapTokens = 512 }},
		{"chunking.tokenizer", func(c *Config) { c.Chunking.Tokenizer = "bpe" }},
		{"embedding.backend", func(c *Config) { c.Embedding.Backend = "cohere" }},
		{"embedding.api_key", func(c *Config) { c.Embedding.Backend = "Gemini"; c.Embedding.APIKey = "" }},
		{"embedding.batch_size", func(c *Config) { c.Embedding.BatchSize = 0 }},
		{"generation.model", func(c *Config) { c.Generation.Model = "" }},
		{"index.backend", func(c *Config) { c.Index.Backend = "milvus" }},
		{"index.qdrant.host", func(c *Config) { c.Index.Backend = "qdrant" }},
		{"session.backend", func(c *Config) { c.Session.Backend = "redis" }},
		{"retrieval.low_confidence_threshold", func(c *Config) { c.Retrieval.LowConfidenceThreshold = 1.2 }},
		{"eval.search_k", func(c *Config) { c.Eval.SearchK = 3 }},
		{"eval.min_precision", func(c *Config) { c.Eval.MinPrecision = -0.1 }},
		{"agent.max_tool_calls", func(c *Config) { c.Agent.MaxToolCalls = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cerr *core.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}

	cfg := Default()
	cfg.DataDir = ""
	cfg.InMemory = true
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Site.Roots = []string{"https://docs.example.com"}
	cfg.Embedding.CacheTTL = 90 * time.Second
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Site, loaded.Site)
	assert.Equal(t, 90*time.Second, loaded.Embedding.CacheTTL)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOCRAG_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DOCRAG_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("DOCRAG_TEST_DOTENV"))
}
