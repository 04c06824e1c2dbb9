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

// Package docrag wires the indexing, retrieval, evaluation and answer
// components from a single configuration.
package docrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/poiesic/docrag/agent"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/ai/genai"
	"github.com/poiesic/docrag/ai/openai"
	"github.com/poiesic/docrag/chunk"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/embedding"
	"github.com/poiesic/docrag/eval"
	"github.com/poiesic/docrag/extract"
	"github.com/poiesic/docrag/index/qdrant"
	"github.com/poiesic/docrag/ingestion"
	"github.com/poiesic/docrag/reembed"
	"github.com/poiesic/docrag/retrieval"
	"github.com/poiesic/docrag/storage"
	"github.com/poiesic/docrag/storage/badger"
	"github.com/poiesic/docrag/storage/sqlite"
)

// ErrConfigRequired is returned by Open when no configuration is given.
var ErrConfigRequired = fmt.Errorf("%w: config required", core.ErrConfiguration)

// System holds every long-lived client built from one configuration.
type System struct {
	config    *config.Config
	stores    *badger.Stores
	index     storage.VectorIndex
	sessions  storage.SessionStore
	provider  ai.AIProvider
	embedder  *embedding.Client
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	retrieval *retrieval.Service
	logger    *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider   ai.AIProvider
	httpClient *http.Client
	sleeper    embedding.Sleeper
	logger     *slog.Logger
}

// WithProvider replaces the providers built from the configuration.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithHTTPClient sets the client used to fetch documentation pages.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithSleeper sets how the embedding client waits between retries.
func WithSleeper(sleeper embedding.Sleeper) Option {
	return func(o *options) {
		o.sleeper = sleeper
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open validates cfg and builds the system. Resources opened before a
// failure are released before the error is returned.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*System, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{config: cfg, logger: o.logger.With("component", "docrag")}
	if err := s.open(ctx, o); err != nil {
		s.Close()
		return nil, err
	}
	s.logger.Debug("system ready",
		"index", cfg.Index.Backend,
		"sessions", cfg.Session.Backend,
		"embedding", s.embedder.ModelName())
	return s, nil
}

func (s *System) open(ctx context.Context, o *options) error {
	cfg := s.config

	stores, err := badger.OpenStores(cfg.BadgerPath(), cfg.InMemory)
	if err != nil {
		return err
	}
	s.stores = stores

	switch cfg.Index.Backend {
	case config.BackendQdrant:
		q := cfg.Index.Qdrant
		index, err := qdrant.NewIndex(qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: q.Collection,
		})
		if err != nil {
			return err
		}
		s.index = index
	default:
		s.index = stores.Index
	}

	switch cfg.Session.Backend {
	case config.BackendSQLite:
		sessions, err := sqlite.Open(cfg.SessionPath())
		if err != nil {
			return err
		}
		s.sessions = sessions
	default:
		s.sessions = stores.Sessions
	}

	provider := o.provider
	if provider == nil {
		provider, err = newProvider(ctx, cfg)
		if err != nil {
			return err
		}
	}
	s.provider = provider

	embedOpts := []embedding.Option{
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithRetryPolicy(embedding.RetryPolicy{
			MaxRetries: cfg.Embedding.MaxRetries,
			BaseDelay:  cfg.Embedding.BaseDelay,
			Multiplier: 2,
		}),
		embedding.WithRateLimit(cfg.Embedding.RateLimit, 1),
		embedding.WithQueryCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL),
		embedding.WithLogger(o.logger),
	}
	if o.sleeper != nil {
		embedOpts = append(embedOpts, embedding.WithSleeper(o.sleeper))
	}
	if s.embedder, err = embedding.NewClient(provider.Embedder(), embedOpts...); err != nil {
		return err
	}

	extractOpts := []extract.Option{
		extract.WithRateLimit(cfg.Site.RateLimit, 1),
		extract.WithMaxPages(cfg.Site.MaxPages),
		extract.WithLogger(o.logger),
	}
	if cfg.Site.UserAgent != "" {
		extractOpts = append(extractOpts, extract.WithUserAgent(cfg.Site.UserAgent))
	}
	if o.httpClient != nil {
		extractOpts = append(extractOpts, extract.WithHTTPClient(o.httpClient))
	}
	if s.extractor, err = extract.NewExtractor(extractOpts...); err != nil {
		return err
	}

	tokenizer, err := newTokenizer(cfg.Chunking)
	if err != nil {
		return err
	}
	s.chunker, err = chunk.NewChunker(
		chunk.WithMaxTokens(cfg.Chunking.MaxTokens),
		chunk.WithOverlapTokens(cfg.Chunking.OverlapTokens),
		chunk.WithTokenizer(tokenizer),
		chunk.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}

	s.retrieval, err = retrieval.NewService(s.embedder, s.index,
		retrieval.WithDefaultK(cfg.Retrieval.K),
		retrieval.WithLowConfidenceThreshold(cfg.Retrieval.LowConfidenceThreshold),
		retrieval.WithLogger(o.logger),
	)
	return err
}

// newProvider builds the embedder for the configured backend and pairs it
// with the OpenAI-compatible chat generator.
func newProvider(ctx context.Context, cfg *config.Config) (ai.AIProvider, error) {
	embedCfg := ai.NewConfig(
		ai.WithEmbeddingBackend(cfg.Embedding.Backend),
		ai.WithEmbeddingHost(cfg.Embedding.Host),
		ai.WithEmbeddingModel(cfg.Embedding.Model),
		ai.WithAPIKey(cfg.Embedding.APIKey),
		ai.WithPrefixes(cfg.Embedding.DocumentPrefix, cfg.Embedding.QueryPrefix),
	)

	var (
		embedder ai.Embedder
		err      error
	)
	switch cfg.Embedding.Backend {
	case config.BackendGemini:
		embedder, err = genai.NewEmbedder(ctx, embedCfg)
	default:
		embedder, err = openai.NewEmbedder(embedCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	genCfg := ai.NewConfig(
		ai.WithHost(cfg.Generation.Host),
		ai.WithGenerationModel(cfg.Generation.Model),
		ai.WithAPIKey(cfg.Generation.APIKey),
		ai.WithTemperature(cfg.Generation.Temperature),
	)
	provider, err := openai.NewProviderWithEmbedder(genCfg, embedder)
	if err != nil {
		return nil, fmt.Errorf("generation provider: %w", err)
	}
	return provider, nil
}

func newTokenizer(cfg config.ChunkingConfig) (chunk.Tokenizer, error) {
	if cfg.Tokenizer == config.TokenizerWords {
		return chunk.WordTokenizer{}, nil
	}
	return chunk.NewTiktokenTokenizer(cfg.Encoding)
}

// Close releases the provider, a separate index or session store, and
// finally the badger stores.
func (s *System) Close() error {
	var errs []error
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.stores != nil && s.index != nil && s.index != storage.VectorIndex(s.stores.Index) {
		if err := s.index.Close(); err != nil {
			s.logger.Error("error closing vector index", "err", err)
			errs = append(errs, err)
		}
	}
	if s.stores != nil && s.sessions != nil && s.sessions != storage.SessionStore(s.stores.Sessions) {
		if err := s.sessions.Close(); err != nil {
			s.logger.Error("error closing session store", "err", err)
			errs = append(errs, err)
		}
	}
	if s.stores != nil {
		if err := s.stores.Close(); err != nil {
			s.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the validated configuration.
func (s *System) Config() *config.Config {
	return s.config
}

// Index returns the configured vector index.
func (s *System) Index() storage.VectorIndex {
	return s.index
}

// Sessions returns the configured session store.
func (s *System) Sessions() storage.SessionStore {
	return s.sessions
}

// Runs returns the store holding the last ingestion report.
func (s *System) Runs() storage.RunStore {
	return s.stores.Runs
}

// Embedder returns the shared embedding client.
func (s *System) Embedder() *embedding.Client {
	return s.embedder
}

// Retrieval returns the shared retrieval service.
func (s *System) Retrieval() *retrieval.Service {
	return s.retrieval
}

// NewPipeline creates an ingestion pipeline over the configured site.
// The caller must Release it.
func (s *System) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithPrefetch(s.config.Site.Prefetch),
		ingestion.WithRunStore(s.stores.Runs),
		ingestion.WithLogger(s.logger),
	}
	return ingestion.NewPipeline(s.extractor, s.chunker, s.embedder, s.index, append(base, opts...)...)
}

// Ingest runs a pipeline over the configured site roots.
func (s *System) Ingest(ctx context.Context, opts ...ingestion.Option) (*core.RunReport, error) {
	if len(s.config.Site.Roots) == 0 {
		return nil, &core.ConfigurationError{Field: "site.roots", Reason: "at least one root is required"}
	}
	p, err := s.NewPipeline(opts...)
	if err != nil {
		return nil, err
	}
	defer p.Release()
	return p.Run(ctx, s.config.Site.Roots...)
}

// NewAgent creates an answer agent. Instructions are read from
// agent.instructions_file when it is set.
func (s *System) NewAgent(opts ...agent.Option) (*agent.Agent, error) {
	base := []agent.Option{
		agent.WithMaxToolCalls(s.config.Agent.MaxToolCalls),
		agent.WithLogger(s.logger),
	}
	if path := s.config.Agent.InstructionsFile; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &core.ConfigurationError{Field: "agent.instructions_file", Reason: err.Error()}
		}
		base = append(base, agent.WithInstructions(string(data)))
	}
	return agent.NewAgent(s.provider.Generator(), s.retrieval, s.sessions, append(base, opts...)...)
}

// NewEvaluator creates a retrieval evaluator. The query set comes from
// eval.queries_file or the built-in set, and its ground truth is rebased
// onto the first site root.
func (s *System) NewEvaluator(opts ...eval.Option) (*eval.Evaluator, error) {
	set, err := s.querySet()
	if err != nil {
		return nil, err
	}
	base := []eval.Option{
		eval.WithSearchK(s.config.Eval.SearchK),
		eval.WithThreshold(s.config.Eval.Threshold),
		eval.WithMinRelevance(s.config.Eval.MinRelevance),
		eval.WithMinPrecision(s.config.Eval.MinPrecision),
		eval.WithLogger(s.logger),
	}
	return eval.NewEvaluator(s.retrieval, set, append(base, opts...)...)
}

func (s *System) querySet() (*eval.QuerySet, error) {
	var (
		set *eval.QuerySet
		err error
	)
	if path := s.config.Eval.QueriesFile; path != "" {
		set, err = eval.LoadQuerySet(path)
	} else {
		set, err = eval.DefaultQuerySet()
	}
	if err != nil {
		return nil, err
	}
	if len(s.config.Site.Roots) > 0 {
		if err := set.Rebase(s.config.Site.Roots[0]); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// NewReembedder creates a reembedder that refreshes every stored vector
// with the current embedding model.
func (s *System) NewReembedder(opts ...reembed.Option) (*reembed.Reembedder, error) {
	base := []reembed.Option{reembed.WithLogger(s.logger)}
	return reembed.NewReembedder(s.index, s.embedder, append(base, opts...)...)
}

// Status summarizes the index.
type Status struct {
	IndexBackend   string
	SessionBackend string
	EmbeddingModel string
	Entries        int
	LastRun        *core.RunReport
}

// Status reports the number of indexed chunks and the last ingestion run.
func (s *System) Status(ctx context.Context) (*Status, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	last, err := s.stores.Runs.LastRunReport(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		IndexBackend:   s.config.Index.Backend,
		SessionBackend: s.config.Session.Backend,
		EmbeddingModel: s.embedder.ModelName(),
		Entries:        count,
		LastRun:        last,
	}, nil
}

// Reset drops every indexed chunk.
func (s *System) Reset(ctx context.Context) error {
	s.logger.Info("resetting index", "backend", s.config.Index.Backend)
	return s.index.Reset(ctx)
}
