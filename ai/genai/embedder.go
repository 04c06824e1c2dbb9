// Package genai implements ai.Embedder on the Gemini API, which supports
// retrieval task types natively instead of text prefixes.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/docrag/ai"
	"google.golang.org/genai"
)

// Task types understood by Gemini embedding models.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("gemini api key required")

// Embedder implements ai.Embedder using the Gemini batchEmbedContents endpoint.
type Embedder struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// Option configures the Gemini client.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at an alternative endpoint.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPClient = client
	}
}

// NewEmbedder creates a Gemini embedder from the AI config.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(ctx context.Context, config *ai.Config, opts ...Option) (ai.Embedder, error) {
	if config.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}
	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}
	cc.HTTPClient = ai.WithStatusTransport(cc.HTTPClient)
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		client: client,
		model:  config.EmbeddingModel,
		logger: slog.Default().With("component", "gemini-embedder"),
	}, nil
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
	return vectors[0], nil
}

// EmbedTexts embeds all texts in one batch request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string, mode ai.EmbedMode) ([][]float32, error) {
	taskType, err := TaskType(mode)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	e.logger.Debug("generating embeddings", "count", len(texts), "task", taskType)
	ctx, classify := ai.RecordStatus(ctx)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: taskType})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, classify(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// TaskType maps an embed mode to the Gemini task type.
func TaskType(mode ai.EmbedMode) (string, error) {
	switch mode {
	case ai.ModeDocument:
		return TaskRetrievalDocument, nil
	case ai.ModeQuery:
		return TaskRetrievalQuery, nil
	}
	return "", fmt.Errorf("unsupported embed mode %d", mode)
}
