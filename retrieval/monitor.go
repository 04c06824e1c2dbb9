package retrieval

import (
	"log/slog"

	"github.com/poiesic/docrag/core"
)

// Monitor provides hooks to observe a retrieval.
// Implement this interface to track intermediate steps and results.
type Monitor interface {
	Start(query string, k int)
	AfterEmbedding(vector []float32)
	AfterSearch(hits []*core.ScoredEntry)
	Finish(results []core.RetrievalResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                 {}
func (n *noopMonitor) AfterEmbedding(_ []float32)            {}
func (n *noopMonitor) AfterSearch(_ []*core.ScoredEntry)     {}
func (n *noopMonitor) Finish(_ []core.RetrievalResult)       {}

// LogMonitor reports every stage at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

func (m *LogMonitor) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m *LogMonitor) Start(query string, k int) {
	m.logger().Debug("retrieval started", "query", query, "k", k)
}

func (m *LogMonitor) AfterEmbedding(vector []float32) {
	m.logger().Debug("query embedded", "dim", len(vector))
}

func (m *LogMonitor) AfterSearch(hits []*core.ScoredEntry) {
	for i, h := range hits {
		m.logger().Debug("hit", "position", i, "id", h.ID, "score", h.Score, "url", h.Payload.URL)
	}
}

func (m *LogMonitor) Finish(results []core.RetrievalResult) {
	low := 0
	for _, r := range results {
		if r.LowConfidence {
			low++
		}
	}
	m.logger().Debug("retrieval finished", "results", len(results), "low_confidence", low)
}
