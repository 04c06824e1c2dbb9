package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/poiesic/docrag/core"
)

// EnvPrefix prefixes every docrag environment variable.
const EnvPrefix = "DOCRAG_"

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with DOCRAG_* variables and provider keys.
//
// Provider keys fill only what is still empty: OPENAI_API_KEY for an
// OpenAI-compatible embedder and for generation, GEMINI_API_KEY for a
// Gemini embedder, QDRANT_API_KEY for Qdrant. DOCRAG_* variables always win.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, &core.ConfigurationError{Field: EnvPrefix + key, Reason: fmt.Sprintf("not an integer: %q", v)})
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, &core.ConfigurationError{Field: EnvPrefix + key, Reason: fmt.Sprintf("not a boolean: %q", v)})
				return
			}
			*dst = b
		}
	}

	str("DATA_DIR", &cfg.DataDir)
	flag("IN_MEMORY", &cfg.InMemory)
	if v, ok := lookup(EnvPrefix + "SITE_ROOTS"); ok && v != "" {
		cfg.Site.Roots = splitList(v)
	}

	str("EMBEDDING_BACKEND", &cfg.Embedding.Backend)
	str("EMBEDDING_HOST", &cfg.Embedding.Host)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	num("EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize)

	str("GENERATION_HOST", &cfg.Generation.Host)
	str("GENERATION_MODEL", &cfg.Generation.Model)
	str("GENERATION_API_KEY", &cfg.Generation.APIKey)

	str("INDEX_BACKEND", &cfg.Index.Backend)
	str("QDRANT_HOST", &cfg.Index.Qdrant.Host)
	num("QDRANT_PORT", &cfg.Index.Qdrant.Port)
	flag("QDRANT_TLS", &cfg.Index.Qdrant.UseTLS)
	str("QDRANT_COLLECTION", &cfg.Index.Qdrant.Collection)

	str("SESSION_BACKEND", &cfg.Session.Backend)
	str("SESSION_PATH", &cfg.Session.Path)

	providerKey := func(key string, dst *string) {
		if *dst != "" {
			return
		}
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	switch strings.ToLower(cfg.Embedding.Backend) {
	case BackendGemini:
		providerKey("GEMINI_API_KEY", &cfg.Embedding.APIKey)
	default:
		providerKey("OPENAI_API_KEY", &cfg.Embedding.APIKey)
	}
	providerKey("OPENAI_API_KEY", &cfg.Generation.APIKey)
	providerKey("QDRANT_API_KEY", &cfg.Index.Qdrant.APIKey)

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
