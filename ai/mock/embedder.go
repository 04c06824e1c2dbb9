package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/poiesic/docrag/ai"
)

// DefaultDimension is the vector size produced by the default behavior.
const DefaultDimension = 256

// EmbedCall records one call to the mock embedder.
type EmbedCall struct {
	Texts []string
	Mode  ai.EmbedMode
}

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextsFunc is called by EmbedText and EmbedTexts if set.
	// If nil, uses default deterministic bag-of-words behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string, mode ai.EmbedMode) ([][]float32, error)

	// Dimension of default vectors. Zero means DefaultDimension.
	Dimension int

	mu    sync.Mutex
	calls []EmbedCall
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockEmbedder().
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// ModelName identifies the mock model.
func (m *MockEmbedder) ModelName() string {
	return "mock-embedding"
}

// EmbedText generates a deterministic embedding for one text.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string, mode ai.EmbedMode) ([]float32, error) {
	vectors, err := m.EmbedTexts(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string, mode ai.EmbedMode) ([][]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, EmbedCall{Texts: append([]string(nil), texts...), Mode: mode})
	fn := m.EmbedTextsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts, mode)
	}

	dim := m.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = BagOfWords(text, dim)
	}
	return embeddings, nil
}

// CallCount returns the number of embedding calls.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded calls.
func (m *MockEmbedder) Calls() []EmbedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmbedCall(nil), m.calls...)
}

// Modes returns the distinct modes seen so far, in first-use order.
func (m *MockEmbedder) Modes() []ai.EmbedMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	var modes []ai.EmbedMode
	seen := map[ai.EmbedMode]bool{}
	for _, c := range m.calls {
		if !seen[c.Mode] {
			seen[c.Mode] = true
			modes = append(modes, c.Mode)
		}
	}
	return modes
}

// Reset clears recorded calls and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.EmbedTextsFunc = nil
}

// BagOfWords hashes lowercased words into dim buckets and normalizes the
// result, so texts sharing vocabulary get a high cosine similarity.
// Empty text yields a fixed unit vector.
func BagOfWords(text string, dim int) []float32 {
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vector[h.Sum32()%uint32(dim)]++
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		vector[0] = 1
		return vector
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
