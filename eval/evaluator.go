package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docrag/core"
)

const (
	// DefaultSearchK is how many results are retrieved per query.
	DefaultSearchK = 5

	// DefaultDisplayK is how many results a QueryResult keeps for display.
	DefaultDisplayK = 3

	// DefaultThreshold is the top-1 score a query must reach to count as relevant.
	DefaultThreshold float32 = 0.4

	// DefaultMinRelevance is the fraction of relevant queries required to pass.
	DefaultMinRelevance = 0.80

	// DefaultMinPrecision is the average precision@3 required to pass when
	// any ground truth was evaluated.
	DefaultMinPrecision = 0.70
)

// Retriever returns ranked results for a query. *retrieval.Service implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]core.RetrievalResult, error)
}

// QueryResult is the outcome of one evaluated query.
type QueryResult struct {
	Query          TestQuery
	Results        []core.RetrievalResult // top DefaultDisplayK
	TopScore       float32
	HasResults     bool
	HasGroundTruth bool
	PrecisionAt3   float64
	PrecisionAt5   float64
	TopicCoverage  float64
}

// Report aggregates an evaluation run.
type Report struct {
	Queries            []QueryResult
	Threshold          float32
	AvgTopScore        float64
	AboveThreshold     int
	RelevanceFraction  float64
	GroundTruthQueries int
	AvgPrecisionAt3    float64
	AvgPrecisionAt5    float64
	Pass               bool
	Reasons            []string
}

// Total returns the number of evaluated queries.
func (r *Report) Total() int {
	return len(r.Queries)
}

// Observer is called after each query is evaluated. index is 1-based.
type Observer func(index, total int, result *QueryResult)

// Evaluator runs a query set through a Retriever and grades the results.
type Evaluator struct {
	retriever    Retriever
	set          *QuerySet
	searchK      int
	threshold    float32
	minRelevance float64
	minPrecision float64
	observer     Observer
	logger       *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator) error

// WithSearchK sets the retrieval depth. It must be at least 5 so that
// precision@5 is defined.
func WithSearchK(k int) Option {
	return func(e *Evaluator) error {
		if k < 5 {
			return ErrInvalidSearchK
		}
		e.searchK = k
		return nil
	}
}

// WithThreshold sets the top-1 score a query must reach to count as relevant.
func WithThreshold(threshold float32) Option {
	return func(e *Evaluator) error {
		if threshold < 0 || threshold > 1 {
			return ErrInvalidRatio
		}
		e.threshold = threshold
		return nil
	}
}

// WithMinRelevance sets the fraction of relevant queries required to pass.
func WithMinRelevance(fraction float64) Option {
	return func(e *Evaluator) error {
		if fraction < 0 || fraction > 1 {
			return ErrInvalidRatio
		}
		e.minRelevance = fraction
		return nil
	}
}

// WithMinPrecision sets the average precision@3 required to pass.
func WithMinPrecision(precision float64) Option {
	return func(e *Evaluator) error {
		if precision < 0 || precision > 1 {
			return ErrInvalidRatio
		}
		e.minPrecision = precision
		return nil
	}
}

// WithObserver registers a callback invoked after each query.
func WithObserver(observer Observer) Option {
	return func(e *Evaluator) error {
		e.observer = observer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEvaluator creates an evaluator. A nil set selects the default query set.
func NewEvaluator(retriever Retriever, set *QuerySet, opts ...Option) (*Evaluator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if set == nil {
		var err error
		if set, err = DefaultQuerySet(); err != nil {
			return nil, err
		}
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	e := &Evaluator{
		retriever:    retriever,
		set:          set,
		searchK:      DefaultSearchK,
		threshold:    DefaultThreshold,
		minRelevance: DefaultMinRelevance,
		minPrecision: DefaultMinPrecision,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "evaluator")
	return e, nil
}

// Run evaluates every query in order. A retrieval error aborts the run.
func (e *Evaluator) Run(ctx context.Context) (*Report, error) {
	total := len(e.set.Queries)
	e.logger.Info("starting evaluation", "queries", total, "k", e.searchK)

	results := make([]QueryResult, 0, total)
	for i, q := range e.set.Queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		retrieved, err := e.retriever.Retrieve(ctx, q.Text, e.searchK)
		if err != nil {
			e.logger.Error("retrieval failed", "query", q.Text, "err", err)
			return nil, fmt.Errorf("evaluate %q: %w", q.Text, err)
		}

		qr := e.grade(q, retrieved)
		results = append(results, qr)
		e.logger.Debug("query evaluated",
			"query", q.Text,
			"top_score", qr.TopScore,
			"p@3", qr.PrecisionAt3,
			"topics", qr.TopicCoverage)
		if e.observer != nil {
			e.observer(i+1, total, &results[len(results)-1])
		}
	}

	report := Summarize(results, e.threshold, e.minRelevance, e.minPrecision)
	e.logger.Info("evaluation complete",
		"pass", report.Pass,
		"relevance", report.RelevanceFraction,
		"avg_p@3", report.AvgPrecisionAt3)
	return report, nil
}

func (e *Evaluator) grade(q TestQuery, retrieved []core.RetrievalResult) QueryResult {
	qr := QueryResult{Query: q, Results: retrieved[:min(DefaultDisplayK, len(retrieved))]}
	if len(retrieved) > 0 {
		qr.HasResults = true
		qr.TopScore = retrieved[0].Score
	}

	var text strings.Builder
	urls := make([]string, len(retrieved))
	for i, r := range retrieved {
		urls[i] = r.URL
		text.WriteString(r.Title)
		text.WriteByte(' ')
		text.WriteString(r.Heading)
		text.WriteByte(' ')
		text.WriteString(r.Text)
		text.WriteByte(' ')
	}
	qr.TopicCoverage = TopicCoverage(text.String(), q.ExpectedTopics)

	if relevant, ok := e.set.Relevant(q.Text); ok {
		qr.HasGroundTruth = true
		qr.PrecisionAt3 = PrecisionAtK(urls, relevant, 3)
		qr.PrecisionAt5 = PrecisionAtK(urls, relevant, 5)
	}
	return qr
}

// Summarize aggregates query results and applies the pass rule: the
// fraction of queries whose top score reaches threshold must be at least
// minRelevance and, when any query has ground truth, the average
// precision@3 must be at least minPrecision.
func Summarize(results []QueryResult, threshold float32, minRelevance, minPrecision float64) *Report {
	r := &Report{Queries: results, Threshold: threshold}

	var top, p3, p5 []float64
	for _, qr := range results {
		if qr.HasResults {
			top = append(top, float64(qr.TopScore))
			if qr.TopScore >= threshold {
				r.AboveThreshold++
			}
		}
		if qr.HasGroundTruth {
			p3 = append(p3, qr.PrecisionAt3)
			p5 = append(p5, qr.PrecisionAt5)
		}
	}
	r.AvgTopScore = mean(top)
	if len(results) > 0 {
		r.RelevanceFraction = float64(r.AboveThreshold) / float64(len(results))
	}
	r.GroundTruthQueries = len(p3)
	r.AvgPrecisionAt3 = mean(p3)
	r.AvgPrecisionAt5 = mean(p5)

	relevancePass := r.RelevanceFraction >= minRelevance
	precisionPass := r.GroundTruthQueries == 0 || r.AvgPrecisionAt3 >= minPrecision
	if !relevancePass {
		r.Reasons = append(r.Reasons, fmt.Sprintf("relevance %.0f%% < %.0f%% (top-1 score >= %.2f)",
			r.RelevanceFraction*100, minRelevance*100, threshold))
	}
	if !precisionPass {
		r.Reasons = append(r.Reasons, fmt.Sprintf("precision@3 %.2f < %.2f over %d ground-truth queries",
			r.AvgPrecisionAt3, minPrecision, r.GroundTruthQueries))
	}
	r.Pass = relevancePass && precisionPass
	return r
}
