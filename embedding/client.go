package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize = 96
	DefaultCacheSize = 256
	DefaultCacheTTL  = 10 * time.Minute
)

// Client batches texts for a provider embedder, retrying failed batches.
// Query embeddings are cached.
type Client struct {
	embedder  ai.Embedder
	batchSize int
	policy    RetryPolicy
	sleep     Sleeper
	limiter   *rate.Limiter
	cache     *expirable.LRU[string, []float32]
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithBatchSize sets how many texts go into one provider call.
func WithBatchSize(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return ErrInvalidBatchSize
		}
		c.batchSize = n
		return nil
	}
}

// WithRetryPolicy replaces the default 1s/2s/4s policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) error {
		if err := p.Validate(); err != nil {
			return err
		}
		c.policy = p
		return nil
	}
}

// WithSleeper replaces the timer used between retries.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) error {
		if s == nil {
			return ErrSleeperRequired
		}
		c.sleep = s
		return nil
	}
}

// WithRateLimit paces provider calls. A non-positive rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) error {
		if perSecond <= 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithQueryCache sizes the query cache. A non-positive size or ttl disables it.
func WithQueryCache(size int, ttl time.Duration) Option {
	return func(c *Client) error {
		if size <= 0 || ttl <= 0 {
			c.cache = nil
			return nil
		}
		c.cache = expirable.NewLRU[string, []float32](size, nil, ttl)
		return nil
	}
}

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding-client")
		return nil
	}
}

// NewClient creates an embedding client around a provider embedder.
func NewClient(embedder ai.Embedder, opts ...Option) (*Client, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	c := &Client{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		policy:    DefaultRetryPolicy(),
		sleep:     ContextSleeper,
		cache:     expirable.NewLRU[string, []float32](DefaultCacheSize, nil, DefaultCacheTTL),
		logger:    slog.Default().With("component", "embedding-client"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ModelName returns the provider model name.
func (c *Client) ModelName() string {
	return c.embedder.ModelName()
}

// Embed returns one vector per text, in input order.
// Texts are sent in batches of at most the configured batch size; a batch
// that still fails after all retries yields a *core.EmbeddingError.
func (c *Client) Embed(ctx context.Context, texts []string, mode ai.EmbedMode) ([][]float32, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	vectors := make([][]float32, 0, len(texts))
	for start, batch := 0, 0; start < len(texts); start, batch = start+c.batchSize, batch+1 {
		end := min(start+c.batchSize, len(texts))
		out, err := c.embedBatch(ctx, batch, texts[start:end], mode)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, batch int, texts []string, mode ai.EmbedMode) ([][]float32, error) {
	var out [][]float32
	attempts, err := c.policy.Retry(ctx, c.sleep, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		vectors, err := c.embedder.EmbedTexts(ctx, texts, mode)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for i, v := range vectors {
			if len(v) == 0 {
				return fmt.Errorf("provider returned an empty vector at position %d", i)
			}
		}
		out = vectors
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		c.logger.Error("embedding batch failed", "batch", batch, "size", len(texts), "attempts", attempts, "err", err)
		return nil, &core.EmbeddingError{Batch: batch, Size: len(texts), Attempts: attempts, Err: err}
	}
	c.logger.Debug("embedded batch", "batch", batch, "size", len(texts), "mode", mode, "attempts", attempts)
	return out, nil
}

// EmbedQuery embeds a single query in query mode, consulting the cache first.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	key := cacheKey(c.embedder.ModelName(), ai.ModeQuery, query)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug("query embedding cache hit")
			return cloneEmbedding(cached), nil
		}
	}

	vectors, err := c.Embed(ctx, []string{query}, ai.ModeQuery)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(key, cloneEmbedding(vectors[0]))
	}
	return vectors[0], nil
}

func cacheKey(model string, mode ai.EmbedMode, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + mode.String() + ":" + hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
