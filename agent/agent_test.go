package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/ai/mock"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	mu      sync.Mutex
	queries []string
	ks      []int
	results []core.RetrievalResult
	err     error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]core.RetrievalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	s.ks = append(s.ks, k)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

var rosResults = []core.RetrievalResult{{
	Rank:  1,
	Score: 0.82,
	Payload: core.Payload{
		URL:     "https://docs.example.com/ros2",
		Title:   "ROS 2 Overview",
		Heading: "Overview > What is ROS 2",
		Text:    "ROS 2 is a set of libraries for building robot applications.",
	},
}}

func newStores(t *testing.T) *badger.Stores {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func newAgent(t *testing.T, gen ai.Generator, r Retriever, stores *badger.Stores, opts ...Option) *Agent {
	t.Helper()
	a, err := NewAgent(gen, r, stores.Sessions, opts...)
	require.NoError(t, err)
	return a
}

func TestNewAgent_RequiresCollaborators(t *testing.T) {
	stores := newStores(t)
	gen := mock.NewMockGenerator()
	r := &stubRetriever{}

	_, err := NewAgent(nil, r, stores.Sessions)
	assert.ErrorIs(t, err, ErrGeneratorRequired)
	_, err = NewAgent(gen, nil, stores.Sessions)
	assert.ErrorIs(t, err, ErrRetrieverRequired)
	_, err = NewAgent(gen, r, nil)
	assert.ErrorIs(t, err, ErrSessionStoreRequired)
	_, err = NewAgent(gen, r, stores.Sessions, WithMaxToolCalls(0))
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestChat_AnswersWithCitations(t *testing.T) {
	stores := newStores(t)
	r := &stubRetriever{results: rosResults}
	gen := mock.NewMockGenerator(
		mock.ToolCallCompletion("call_1", SearchToolName, `{"query":"what is ROS 2","k":50}`),
		mock.TextCompletion("ROS 2 is a set of robot libraries [ROS 2 Overview](https://docs.example.com/ros2). "+
			"See also [Overview again](https://docs.example.com/ros2)."),
	)
	a := newAgent(t, gen, r, stores)
	ctx := context.Background()

	reply, err := a.Chat(ctx, ChatRequest{SessionID: "s1", Message: "What is ROS 2?"})
	require.NoError(t, err)

	assert.Nil(t, reply.Error)
	assert.Contains(t, reply.Answer, "robot libraries")
	assert.Equal(t, []core.Citation{{Title: "ROS 2 Overview", URL: "https://docs.example.com/ros2"}}, reply.Citations)
	assert.Equal(t, []int{MaxSearchK}, r.ks, "k is clamped")

	calls := gen.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ai.RoleSystem, calls[0].Messages[0].Role)
	require.Len(t, calls[0].Tools, 1)
	assert.Equal(t, SearchToolName, calls[0].Tools[0].Name)

	toolMsg := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, ai.RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
	var payload toolResult
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &payload))
	assert.Nil(t, payload.Error)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "ROS 2 Overview", payload.Results[0].Title)
	assert.Equal(t, "https://docs.example.com/ros2", payload.Results[0].URL)

	history, err := stores.Sessions.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, core.RoleAssistant, history[1].Role)
	assert.Equal(t, reply.Answer, history[1].Content)
	require.Len(t, history[1].ToolInvocations, 1)
	assert.Equal(t, SearchToolName, history[1].ToolInvocations[0].Name)
	assert.Equal(t, toolMsg.Content, history[1].ToolInvocations[0].Result)
	assert.Equal(t, reply.Citations, history[1].Citations)
}

func TestChat_ZeroResultsAreAcknowledged(t *testing.T) {
	stores := newStores(t)
	r := &stubRetriever{}
	gen := mock.NewMockGenerator(
		mock.ToolCallCompletion("call_1", SearchToolName, `{"query":"quantum teleportation module"}`),
		mock.TextCompletion("The quantum module was released in 2019 and supports 40 qubits."),
	)
	a := newAgent(t, gen, r, stores)

	reply, err := a.Chat(context.Background(), ChatRequest{SessionID: "s1", Message: "Tell me about the quantum module"})
	require.NoError(t, err)

	assert.Equal(t, NotFoundMessage, reply.Answer)
	assert.Contains(t, reply.Answer, "couldn't find")
	assert.NotContains(t, reply.Answer, "2019")
	assert.NotContains(t, reply.Answer, "qubits")
	assert.Empty(t, reply.Citations)
	assert.Equal(t, []int{DefaultSearchK}, r.ks)

	var payload toolResult
	last := gen.Calls()[1].Messages
	require.NoError(t, json.Unmarshal([]byte(last[len(last)-1].Content), &payload))
	assert.NotNil(t, payload.Results)
	assert.Empty(t, payload.Results)
}

func TestChat_MultiTurnResolvesReference(t *testing.T) {
	stores := newStores(t)
	r := &stubRetriever{results: rosResults}
	ctx := context.Background()

	gen := mock.NewMockGenerator()
	turn := 0
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, tools []ai.ToolSpec) (*ai.Completion, error) {
		last := messages[len(messages)-1]
		if last.Role == ai.RoleTool {
			return mock.TextCompletion("Answer [ROS 2 Overview](https://docs.example.com/ros2)"), nil
		}
		turn++
		if turn == 1 {
			return mock.ToolCallCompletion("c1", SearchToolName, `{"query":"What is ROS 2"}`), nil
		}

		// Second turn: both user turns must already be stored.
		history, err := stores.Sessions.History(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "What is ROS 2?", history[0].Content)
		assert.Equal(t, "How do I install it?", history[2].Content)

		// Resolve "it" from the earliest user message in the conversation.
		var subject string
		for _, m := range messages {
			if m.Role == ai.RoleUser {
				subject = strings.TrimSuffix(strings.TrimPrefix(m.Content, "What is "), "?")
				break
			}
		}
		args, _ := json.Marshal(map[string]any{"query": "install " + subject})
		return mock.ToolCallCompletion("c2", SearchToolName, string(args)), nil
	}
	a := newAgent(t, gen, r, stores)

	_, err := a.Chat(ctx, ChatRequest{SessionID: "s1", Message: "What is ROS 2?"})
	require.NoError(t, err)
	_, err = a.Chat(ctx, ChatRequest{SessionID: "s1", Message: "How do I install it?"})
	require.NoError(t, err)

	assert.Equal(t, []string{"What is ROS 2", "install ROS 2"}, r.queries)

	calls := gen.Calls()
	require.Len(t, calls, 4)
	second := calls[2].Messages
	require.Len(t, second, 4, "system, user, assistant, user")
	assert.Equal(t, ai.RoleAssistant, second[2].Role)
	assert.Equal(t, "How do I install it?", second[3].Content)

	history, err := stores.Sessions.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestChat_ToolBudget(t *testing.T) {
	stores := newStores(t)
	r := &stubRetriever{results: rosResults}
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, messages []ai.Message, tools []ai.ToolSpec) (*ai.Completion, error) {
		if len(tools) == 0 {
			return mock.TextCompletion("Done [ROS 2 Overview](https://docs.example.com/ros2)"), nil
		}
		return &ai.Completion{ToolCalls: []ai.ToolCall{
			{ID: "a", Name: SearchToolName, Arguments: `{"query":"x"}`},
			{ID: "b", Name: SearchToolName, Arguments: `{"query":"y"}`},
		}}, nil
	}
	a := newAgent(t, gen, r, stores, WithMaxToolCalls(3))

	reply, err := a.Chat(context.Background(), ChatRequest{SessionID: "s1", Message: "loop forever"})
	require.NoError(t, err)

	assert.Len(t, r.queries, 3)
	assert.Equal(t, 3, gen.CallCount())
	assert.Empty(t, gen.Calls()[2].Tools)
	assert.True(t, strings.HasPrefix(reply.Answer, "Done"))

	var limited toolResult
	msgs := gen.Calls()[2].Messages
	require.NoError(t, json.Unmarshal([]byte(msgs[len(msgs)-1].Content), &limited))
	require.NotNil(t, limited.Error)
	assert.Equal(t, "tool_limit", limited.Error.Kind)
}

func TestChat_RetrievalFailure(t *testing.T) {
	stores := newStores(t)
	r := &stubRetriever{err: &core.IndexUnavailableError{Op: "search", Err: errors.New("connection refused")}}
	gen := mock.NewMockGenerator(
		mock.ToolCallCompletion("c1", SearchToolName, `{"query":"nodes"}`),
		mock.TextCompletion("Nodes are processes."),
	)
	a := newAgent(t, gen, r, stores)

	reply, err := a.Chat(context.Background(), ChatRequest{SessionID: "s1", Message: "What are nodes?"})
	require.NoError(t, err)
	assert.Equal(t, UnavailableMessage, reply.Answer)

	msgs := gen.Calls()[1].Messages
	var payload toolResult
	require.NoError(t, json.Unmarshal([]byte(msgs[len(msgs)-1].Content), &payload))
	require.NotNil(t, payload.Error)
	assert.Equal(t, "index_unavailable", payload.Error.Kind)
	assert.True(t, payload.Error.Retryable)
	assert.Empty(t, payload.Results)
}

func TestChat_InvalidToolArguments(t *testing.T) {
	stores := newStores(t)
	r := &stubRetriever{results: rosResults}
	gen := mock.NewMockGenerator(
		mock.ToolCallCompletion("c1", SearchToolName, `{"query":`),
		mock.ToolCallCompletion("c2", "delete_everything", `{}`),
		mock.TextCompletion("General answer."),
	)
	a := newAgent(t, gen, r, stores)

	reply, err := a.Chat(context.Background(), ChatRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "General answer.", reply.Answer, "no search ran, so the guard does not apply")
	assert.Empty(t, r.queries)
}

func TestChat_GenerationFailure(t *testing.T) {
	stores := newStores(t)
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(context.Context, []ai.Message, []ai.ToolSpec) (*ai.Completion, error) {
		return nil, errors.New("502 bad gateway")
	}
	a := newAgent(t, gen, &stubRetriever{}, stores, WithErrorIDs(func() string { return "err-1" }))
	ctx := context.Background()

	reply, err := a.Chat(ctx, ChatRequest{SessionID: "s1", Message: "What is ROS 2?"})
	require.NoError(t, err)
	assert.Equal(t, UnavailableMessage, reply.Answer)
	require.NotNil(t, reply.Error)
	assert.Equal(t, ErrorInfo{
		Kind:      "service_unavailable",
		Message:   "The answer service is temporarily unavailable.",
		Retryable: true,
		ErrorID:   "err-1",
	}, *reply.Error)
	assert.NotContains(t, reply.Answer, "502")

	gen.GenerateFunc = func(context.Context, []ai.Message, []ai.ToolSpec) (*ai.Completion, error) {
		return mock.TextCompletion("Recovered."), nil
	}
	reply, err = a.Chat(ctx, ChatRequest{SessionID: "s1", Message: "Again?"})
	require.NoError(t, err)
	assert.Equal(t, "Recovered.", reply.Answer)

	history, err := stores.Sessions.History(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestChat_Validation(t *testing.T) {
	stores := newStores(t)
	gen := mock.NewMockGenerator(mock.TextCompletion("ok"))
	a := newAgent(t, gen, &stubRetriever{}, stores)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ChatRequest
	}{
		{"empty session", ChatRequest{Message: "hi"}},
		{"empty message", ChatRequest{SessionID: "s", Message: "  "}},
		{"long message", ChatRequest{SessionID: "s", Message: strings.Repeat("é", MaxMessageLength+1)}},
		{"long context", ChatRequest{SessionID: "s", Message: "hi", Context: strings.Repeat("x", MaxContextLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Chat(ctx, tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Zero(t, gen.CallCount())

	_, err := a.Chat(ctx, ChatRequest{SessionID: "s", Message: strings.Repeat("é", MaxMessageLength), Context: "selected text"})
	require.NoError(t, err)
	history, err := stores.Sessions.History(ctx, "s")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(history[0].Content, "\n\nContext: selected text"))
}

func TestChat_SessionStoreFailure(t *testing.T) {
	stores := newStores(t)
	a := newAgent(t, mock.NewMockGenerator(mock.TextCompletion("ok")), &stubRetriever{}, stores)
	require.NoError(t, stores.Close())

	_, err := a.Chat(context.Background(), ChatRequest{SessionID: "s1", Message: "hi"})
	assert.Error(t, err)
}

func TestExtractCitations(t *testing.T) {
	answer := "See [A](https://d/a), [B](https://d/b) and [A again](https://d/a). Not a link: [x] (y)."
	assert.Equal(t, []core.Citation{
		{Title: "A", URL: "https://d/a"},
		{Title: "B", URL: "https://d/b"},
	}, ExtractCitations(answer))

	var many strings.Builder
	for i := range 15 {
		many.WriteString("[T](https://d/" + string(rune('a'+i)) + ") ")
	}
	assert.Len(t, ExtractCitations(many.String()), MaxCitations)
	assert.Empty(t, ExtractCitations("no links"))
	assert.NotNil(t, ExtractCitations("no links"))
}

func TestClampK(t *testing.T) {
	k := func(v int) *int { return &v }
	assert.Equal(t, DefaultSearchK, clampK(nil))
	assert.Equal(t, 1, clampK(k(0)))
	assert.Equal(t, 1, clampK(k(-4)))
	assert.Equal(t, 7, clampK(k(7)))
	assert.Equal(t, MaxSearchK, clampK(k(11)))
}
