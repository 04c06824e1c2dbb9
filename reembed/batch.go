package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
)

// Embedder produces vectors for batches of text. *embedding.Client implements it.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode ai.EmbedMode) ([][]float32, error)
}

// BatchProcessor embeds the chunk text of a batch of entries again.
type BatchProcessor struct {
	embedder Embedder
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(embedder Embedder) *BatchProcessor {
	return &BatchProcessor{embedder: embedder}
}

// Process returns copies of entries carrying fresh document-mode vectors.
// IDs and payloads are unchanged. The input is not modified.
func (bp *BatchProcessor) Process(ctx context.Context, entries []*core.IndexEntry) ([]*core.IndexEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Payload.Text
	}

	vectors, err := bp.embedder.Embed(ctx, texts, ai.ModeDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(entries), len(vectors))
	}

	out := make([]*core.IndexEntry, len(entries))
	for i, e := range entries {
		out[i] = &core.IndexEntry{ID: e.ID, Vector: vectors[i], Payload: e.Payload}
	}
	return out, nil
}
