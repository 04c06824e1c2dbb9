package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docrag/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// OpenAI-style endpoints have no task type, so the mode is expressed as a
// text prefix taken from the config.
type Embedder struct {
	embedder       embeddings.Embedder
	model          string
	documentPrefix string
	queryPrefix    string
	logger         *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token(config)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
		openai.WithHTTPClient(ai.WithStatusTransport(nil)),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:       embedder,
		model:          config.EmbeddingModel,
		documentPrefix: config.DocumentPrefix,
		queryPrefix:    config.QueryPrefix,
		logger:         slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Use "none" as token for local OpenAI-compatible services that don't require authentication
func token(config *ai.Config) string {
	if config.APIKey == "" {
		return "none"
	}
	return config.APIKey
}

// ModelName returns the configured embedding model.
func (e *Embedder) ModelName() string {
	return e.model
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string, mode ai.EmbedMode) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string, mode ai.EmbedMode) ([][]float32, error) {
	prefix, err := e.prefix(mode)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts), "mode", mode)

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = prefix + t
	}

	ctx, classify := ai.RecordStatus(ctx)
	vectors, err := e.embedder.EmbedDocuments(ctx, inputs)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, classify(err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

func (e *Embedder) prefix(mode ai.EmbedMode) (string, error) {
	switch mode {
	case ai.ModeDocument:
		return e.documentPrefix, nil
	case ai.ModeQuery:
		return e.queryPrefix, nil
	}
	return "", fmt.Errorf("unsupported embed mode %d", mode)
}
