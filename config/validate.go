package config

import (
	"net/url"
	"strings"

	"github.com/poiesic/docrag/core"
)

func invalid(field, reason string) error {
	return &core.ConfigurationError{Field: field, Reason: reason}
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate normalizes backend names and checks every section.
// It returns the first problem as a *core.ConfigurationError.
func (c *Config) Validate() error {
	c.Embedding.Backend = strings.ToLower(strings.TrimSpace(c.Embedding.Backend))
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	c.Chunking.Tokenizer = strings.ToLower(strings.TrimSpace(c.Chunking.Tokenizer))

	if !c.InMemory && c.DataDir == "" {
		return invalid("data_dir", "required unless in_memory is set")
	}

	for _, root := range c.Site.Roots {
		u, err := url.Parse(root)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("site.roots", "not an http(s) url: "+root)
		}
	}
	if c.Site.MaxPages < 1 {
		return invalid("site.max_pages", "must be positive")
	}
	if c.Site.RateLimit < 0 {
		return invalid("site.rate_limit", "cannot be negative")
	}
	if c.Site.Prefetch < 1 {
		return invalid("site.prefetch", "must be positive")
	}

	if c.Chunking.MaxTokens < 1 {
		return invalid("chunking.max_tokens", "must be positive")
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return invalid("chunking.overlap_tokens", "must be within [0, max_tokens)")
	}
	if !oneOf(c.Chunking.Tokenizer, TokenizerTiktoken, TokenizerWords) {
		return invalid("chunking.tokenizer", "must be tiktoken or words")
	}

	switch c.Embedding.Backend {
	case BackendOpenAI:
		if c.Embedding.Host == "" {
			return invalid("embedding.host", "required for the openai backend")
		}
	case BackendGemini:
		if c.Embedding.APIKey == "" {
			return invalid("embedding.api_key", "required for the gemini backend (or set GEMINI_API_KEY)")
		}
	default:
		return invalid("embedding.backend", "must be openai or gemini")
	}
	if c.Embedding.Model == "" {
		return invalid("embedding.model", "required")
	}
	if c.Embedding.BatchSize < 1 {
		return invalid("embedding.batch_size", "must be positive")
	}
	if c.Embedding.MaxRetries < 0 {
		return invalid("embedding.max_retries", "cannot be negative")
	}
	if c.Embedding.BaseDelay < 0 {
		return invalid("embedding.base_delay", "cannot be negative")
	}

	if c.Generation.Host == "" {
		return invalid("generation.host", "required")
	}
	if c.Generation.Model == "" {
		return invalid("generation.model", "required")
	}

	switch c.Index.Backend {
	case BackendBadger:
	case BackendQdrant:
		if c.Index.Qdrant.Host == "" {
			return invalid("index.qdrant.host", "required for the qdrant backend")
		}
		if c.Index.Qdrant.Port < 0 || c.Index.Qdrant.Port > 65535 {
			return invalid("index.qdrant.port", "out of range")
		}
	default:
		return invalid("index.backend", "must be badger or qdrant")
	}

	if !oneOf(c.Session.Backend, BackendBadger, BackendSQLite) {
		return invalid("session.backend", "must be badger or sqlite")
	}

	if c.Retrieval.K < 1 {
		return invalid("retrieval.k", "must be positive")
	}
	if c.Retrieval.LowConfidenceThreshold < 0 || c.Retrieval.LowConfidenceThreshold > 1 {
		return invalid("retrieval.low_confidence_threshold", "must be within [0,1]")
	}

	if c.Eval.SearchK < 5 {
		return invalid("eval.search_k", "must be at least 5")
	}
	if c.Eval.Threshold < 0 || c.Eval.Threshold > 1 {
		return invalid("eval.threshold", "must be within [0,1]")
	}
	if c.Eval.MinRelevance < 0 || c.Eval.MinRelevance > 1 {
		return invalid("eval.min_relevance", "must be within [0,1]")
	}
	if c.Eval.MinPrecision < 0 || c.Eval.MinPrecision > 1 {
		return invalid("eval.min_precision", "must be within [0,1]")
	}

	if c.Agent.MaxToolCalls < 1 {
		return invalid("agent.max_tool_calls", "must be positive")
	}
	return nil
}
