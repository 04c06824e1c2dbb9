// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"strings"

	"github.com/poiesic/docrag/core"
)

// Embedding backends understood by the provider factories.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingBackend selects the embedding API: "openai" for any
	// OpenAI-compatible server, "gemini" for the Gemini API.
	EmbeddingBackend string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// GenerationHost is the base URL for the chat completion API.
	GenerationHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small", "gemini-embedding-001"
	EmbeddingModel string

	// GenerationModel is the model identifier used by the agent.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	GenerationModel string

	// APIKey authenticates against hosted services. Local servers ignore it.
	APIKey string

	// DocumentPrefix and QueryPrefix are prepended to texts by
	// OpenAI-compatible embedders, which have no native task type.
	DocumentPrefix string
	QueryPrefix    string

	// Temperature for chat generation.
	// Default: 0.0
	Temperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingBackend selects the embedding API.
func WithEmbeddingBackend(backend string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBackend = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGenerationHost sets the chat service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithHost sets both embedding and generation hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GenerationHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithGenerationModel sets the chat model identifier.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithAPIKey sets the credential sent to hosted services.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithPrefixes sets the document and query prefixes.
func WithPrefixes(document, query string) ConfigOption {
	return func(c *Config) {
		c.DocumentPrefix = document
		c.QueryPrefix = query
	}
}

// WithTemperature sets the generation temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and generation use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingBackend: BackendOpenAI,
		EmbeddingHost:    defaultHost,
		GenerationHost:   defaultHost,
		EmbeddingModel:   "embeddinggemma",
		GenerationModel:  "qwen2.5:3b",
		DocumentPrefix:   "title: none | text: ",
		QueryPrefix:      "task: search result | query: ",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithHost("http://localhost:11434/v1"),
//       WithEmbeddingModel("text-embedding-3-small"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingBackend = strings.ToLower(strings.TrimSpace(c.EmbeddingBackend))
	if c.EmbeddingBackend == "" {
		c.EmbeddingBackend = BackendOpenAI
	}
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.GenerationHost = withV1(c.GenerationHost)
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.EmbeddingBackend {
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return &core.ConfigurationError{Field: "EmbeddingHost", Reason: "is required"}
		}
	case BackendGemini:
		if c.APIKey == "" {
			return &core.ConfigurationError{Field: "APIKey", Reason: "is required for the gemini backend"}
		}
	default:
		return &core.ConfigurationError{Field: "EmbeddingBackend", Reason: "must be openai or gemini"}
	}
	if c.GenerationHost == "" {
		return &core.ConfigurationError{Field: "GenerationHost", Reason: "is required"}
	}
	if c.EmbeddingModel == "" {
		return &core.ConfigurationError{Field: "EmbeddingModel", Reason: "is required"}
	}
	if c.GenerationModel == "" {
		return &core.ConfigurationError{Field: "GenerationModel", Reason: "is required"}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &core.ConfigurationError{Field: "Temperature", Reason: "must be between 0 and 2"}
	}
	return nil
}
