// Package config loads docrag settings from a YAML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"
	BackendSQLite = "sqlite"
	BackendOpenAI = "openai"
	BackendGemini = "gemini"

	TokenizerTiktoken = "tiktoken"
	TokenizerWords    = "words"
)

// SiteConfig describes the documentation site to ingest.
type SiteConfig struct {
	Roots     []string `yaml:"roots"`
	MaxPages  int      `yaml:"max_pages"`
	RateLimit float64  `yaml:"rate_limit"`
	UserAgent string   `yaml:"user_agent,omitempty"`
	Prefetch  int      `yaml:"prefetch"`
}

// ChunkingConfig sizes chunks.
type ChunkingConfig struct {
	MaxTokens     int    `yaml:"max_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
	Tokenizer     string `yaml:"tokenizer"`
	Encoding      string `yaml:"encoding"`
}

// EmbeddingConfig selects the embedding provider and the client's batching,
// retry and caching behavior.
type EmbeddingConfig struct {
	Backend        string        `yaml:"backend"`
	Host           string        `yaml:"host"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key,omitempty"`
	DocumentPrefix string        `yaml:"document_prefix"`
	QueryPrefix    string        `yaml:"query_prefix"`
	BatchSize      int           `yaml:"batch_size"`
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	RateLimit      float64       `yaml:"rate_limit"`
	CacheSize      int           `yaml:"cache_size"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// GenerationConfig selects the chat model used by the agent.
type GenerationConfig struct {
	Host        string  `yaml:"host"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature"`
}

// QdrantConfig holds the Qdrant connection.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// IndexConfig selects the vector index.
type IndexConfig struct {
	Backend string       `yaml:"backend"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// SessionConfig selects the conversation store.
type SessionConfig struct {
	Backend string `yaml:"backend"`
	// Path of the sqlite file. Defaults to <data_dir>/sessions.db.
	Path string `yaml:"path,omitempty"`
}

// RetrievalConfig tunes the retrieval service.
type RetrievalConfig struct {
	K                      int     `yaml:"k"`
	LowConfidenceThreshold float32 `yaml:"low_confidence_threshold"`
}

// EvalConfig tunes the retrieval evaluator.
type EvalConfig struct {
	QueriesFile  string  `yaml:"queries_file,omitempty"`
	SearchK      int     `yaml:"search_k"`
	Threshold    float32 `yaml:"threshold"`
	MinRelevance float64 `yaml:"min_relevance"`
	MinPrecision float64 `yaml:"min_precision"`
}

// AgentConfig tunes the conversation loop.
type AgentConfig struct {
	MaxToolCalls     int    `yaml:"max_tool_calls"`
	InstructionsFile string `yaml:"instructions_file,omitempty"`
}

// Config is the root configuration.
type Config struct {
	// DataDir holds the badger database and the default sqlite file.
	DataDir string `yaml:"data_dir"`
	// InMemory keeps badger in memory; nothing survives the process.
	InMemory bool `yaml:"in_memory,omitempty"`

	Site       SiteConfig       `yaml:"site"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Index      IndexConfig      `yaml:"index"`
	Session    SessionConfig    `yaml:"session"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Eval       EvalConfig       `yaml:"eval"`
	Agent      AgentConfig      `yaml:"agent"`
}

// Default returns the built-in configuration: a local OpenAI-compatible
// server for embeddings and chat, and badger for everything stored.
func Default() *Config {
	const localHost = "http://localhost:11434/v1"
	return &Config{
		DataDir: defaultDataDir(),
		Site: SiteConfig{
			MaxPages:  500,
			RateLimit: 5,
			Prefetch:  4,
		},
		Chunking: ChunkingConfig{
			MaxTokens:     512,
			OverlapTokens: 50,
			Tokenizer:     TokenizerTiktoken,
			Encoding:      "cl100k_base",
		},
		Embedding: EmbeddingConfig{
			Backend:        BackendOpenAI,
			Host:           localHost,
			Model:          "embeddinggemma",
			DocumentPrefix: "title: none | text: ",
			QueryPrefix:    "task: search result | query: ",
			BatchSize:      96,
			MaxRetries:     3,
			BaseDelay:      time.Second,
			CacheSize:      256,
			CacheTTL:       10 * time.Minute,
		},
		Generation: GenerationConfig{
			Host:  localHost,
			Model: "qwen2.5:3b",
		},
		Index: IndexConfig{
			Backend: BackendBadger,
			Qdrant:  QdrantConfig{Port: 6334, Collection: "docs"},
		},
		Session:   SessionConfig{Backend: BackendBadger},
		Retrieval: RetrievalConfig{K: 3, LowConfidenceThreshold: 0.4},
		Eval: EvalConfig{
			SearchK:      5,
			Threshold:    0.4,
			MinRelevance: 0.80,
			MinPrecision: 0.70,
		},
		Agent: AgentConfig{MaxToolCalls: 5},
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "docrag")
	}
	return ".docrag"
}

// Load reads a config file on top of the defaults and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads .env from the working directory if present, then tries
// ./docrag.yaml and ~/.config/docrag/config.yaml. It returns the path used,
// or "" when only defaults and the environment apply.
func LoadDefault() (*Config, string, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, "", err
	}
	candidates := []string{"docrag.yaml"}
	if p, err := UserConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	cfg, err := Load("")
	return cfg, "", err
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// UserConfigPath returns ~/.config/docrag/config.yaml.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// BadgerPath is the directory of the badger database.
func (c *Config) BadgerPath() string {
	return filepath.Join(c.DataDir, "badger")
}

// SessionPath is the sqlite file used when Session.Backend is sqlite.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	return filepath.Join(c.DataDir, "sessions.db")
}
