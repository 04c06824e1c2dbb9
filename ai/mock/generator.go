package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/docrag/ai"
)

// ErrScriptExhausted is returned when the generator has no scripted reply left.
var ErrScriptExhausted = errors.New("mock generator script exhausted")

// GenerateCall records one call to the mock generator.
type GenerateCall struct {
	Messages []ai.Message
	Tools    []ai.ToolSpec
}

// MockGenerator is a test double for ai.Generator.
// Replies are taken from Script in order unless GenerateFunc is set.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, messages []ai.Message, tools []ai.ToolSpec) (*ai.Completion, error)

	mu     sync.Mutex
	script []*ai.Completion
	calls  []GenerateCall
}

// NewMockGenerator creates a generator that replays the given completions.
func NewMockGenerator(script ...*ai.Completion) *MockGenerator {
	return &MockGenerator{script: script}
}

// Generate returns the next scripted completion.
func (m *MockGenerator) Generate(ctx context.Context, messages []ai.Message, tools []ai.ToolSpec) (*ai.Completion, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{
		Messages: append([]ai.Message(nil), messages...),
		Tools:    append([]ai.ToolSpec(nil), tools...),
	})
	fn := m.GenerateFunc
	var next *ai.Completion
	if fn == nil && len(m.script) > 0 {
		next = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, tools)
	}
	if next == nil {
		return nil, ErrScriptExhausted
	}
	return next, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded calls.
func (m *MockGenerator) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateCall(nil), m.calls...)
}

// ToolCallCompletion builds a completion requesting a single tool call.
func ToolCallCompletion(id, name, arguments string) *ai.Completion {
	return &ai.Completion{ToolCalls: []ai.ToolCall{{ID: id, Name: name, Arguments: arguments}}}
}

// TextCompletion builds a final text completion.
func TextCompletion(content string) *ai.Completion {
	return &ai.Completion{Content: content}
}
