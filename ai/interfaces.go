package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The mode selects document or query embedding; it must always be explicit.
	EmbedText(ctx context.Context, text string, mode EmbedMode) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in one call.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)

	// ModelName identifies the embedding model, used for cache keys and reports.
	ModelName() string
}

// Generator produces chat completions and may request tool invocations.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate sends the conversation and the available tools to the model.
	// The completion carries either final text, tool calls, or both.
	// When tools is empty the model cannot request tool calls.
	Generate(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the chat generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
