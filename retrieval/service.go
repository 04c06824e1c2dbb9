package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

const (
	// DefaultK is the number of results returned when k <= 0.
	DefaultK = 3

	// DefaultLowConfidenceThreshold flags results scoring below it.
	DefaultLowConfidenceThreshold float32 = 0.4
)

// QueryEmbedder embeds search queries. *embedding.Client implements it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Service retrieves ranked chunks for a query.
type Service struct {
	embedder  QueryEmbedder
	index     storage.VectorIndex
	threshold float32
	defaultK  int
	monitor   Monitor
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithLowConfidenceThreshold sets the score below which results are flagged.
func WithLowConfidenceThreshold(threshold float32) Option {
	return func(s *Service) error {
		if threshold < 0 || threshold > 1 {
			return ErrInvalidThreshold
		}
		s.threshold = threshold
		return nil
	}
}

// WithDefaultK sets the number of results used when Retrieve gets k <= 0.
func WithDefaultK(k int) Option {
	return func(s *Service) error {
		if k > 0 {
			s.defaultK = k
		}
		return nil
	}
}

// WithMonitor sets the monitor used by Retrieve.
func WithMonitor(monitor Monitor) Option {
	return func(s *Service) error {
		s.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a new retrieval service.
func NewService(embedder QueryEmbedder, index storage.VectorIndex, opts ...Option) (*Service, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	s := &Service{
		embedder:  embedder,
		index:     index,
		threshold: DefaultLowConfidenceThreshold,
		defaultK:  DefaultK,
		monitor:   &noopMonitor{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.monitor == nil {
		s.monitor = &noopMonitor{}
	}
	s.logger = s.logger.With("component", "retrieval")
	return s, nil
}

// Threshold returns the low-confidence threshold.
func (s *Service) Threshold() float32 {
	return s.threshold
}

// Retrieve returns up to k chunks for the query, best first.
// k <= 0 means the default.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]core.RetrievalResult, error) {
	return s.RetrieveWithMonitor(ctx, query, k, s.monitor)
}

// RetrieveWithMonitor is Retrieve with a per-call monitor.
func (s *Service) RetrieveWithMonitor(ctx context.Context, query string, k int, monitor Monitor) ([]core.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.defaultK
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query, k)

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(vector)

	hits, err := s.index.Search(ctx, vector, k)
	if err != nil {
		s.logger.Error("error searching index", "err", err)
		return nil, err
	}
	monitor.AfterSearch(hits)

	results := make([]core.RetrievalResult, len(hits))
	for i, h := range hits {
		score := clamp(h.Score)
		results[i] = core.RetrievalResult{
			Rank:          i + 1,
			Score:         score,
			LowConfidence: score < s.threshold,
			Payload:       h.Payload,
		}
	}
	monitor.Finish(results)

	s.logger.Debug("retrieved", "query", query, "k", k, "results", len(results))
	return results, nil
}

func clamp(score float32) float32 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
