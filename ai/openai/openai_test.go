package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/poiesic/docrag/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer speaks just enough of the OpenAI wire format for the client.
type fakeServer struct {
	mu          sync.Mutex
	inputs      []string
	chatBodies  []map[string]any
	chatReplies []string
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.inputs = append(f.inputs, req.Input...)
		f.mu.Unlock()

		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": []float32{float32(len(in)), 1}}
		}
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.chatBodies = append(f.chatBodies, body)
		reply := f.chatReplies[0]
		f.chatReplies = f.chatReplies[1:]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	})
	return mux
}

func newTestConfig(url string) *ai.Config {
	return ai.NewConfig(ai.WithHost(url), ai.WithPrefixes("doc: ", "query: "))
}

func TestEmbedder_PrefixesByMode(t *testing.T) {
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	e, err := NewEmbedder(newTestConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "embeddinggemma", e.ModelName())

	ctx := context.Background()
	vecs, err := e.EmbedTexts(ctx, []string{"alpha", "beta"}, ai.ModeDocument)
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float32(len("doc: alpha")), vecs[0][0])

	vec, err := e.EmbedText(ctx, "alpha", ai.ModeQuery)
	require.NoError(t, err)
	assert.Equal(t, float32(len("query: alpha")), vec[0])

	f.mu.Lock()
	assert.Equal(t, []string{"doc: alpha", "doc: beta", "query: alpha"}, f.inputs)
	f.mu.Unlock()

	_, err = e.EmbedText(ctx, "alpha", ai.EmbedMode(0))
	assert.Error(t, err)
}

func TestEmbedder_RejectedKeyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(newTestConfig(srv.URL))
	require.NoError(t, err)

	_, err = e.EmbedTexts(context.Background(), []string{"alpha"}, ai.ModeDocument)
	require.Error(t, err)
	assert.True(t, ai.IsPermanent(err))

	var se *ai.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestEmbedder_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e, err := NewEmbedder(newTestConfig(srv.URL))
	require.NoError(t, err)

	_, err = e.EmbedTexts(context.Background(), []string{"alpha"}, ai.ModeDocument)
	require.Error(t, err)
	assert.False(t, ai.IsPermanent(err))
}

func TestGenerator_ToolRoundTrip(t *testing.T) {
	f := &fakeServer{chatReplies: []string{
		`{"id":"1","object":"chat.completion","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_documentation","arguments":"{\"query\":\"nodes\"}"}}]}}]}`,
		`{"id":"2","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Nodes are processes."}}]}`,
	}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	g, err := NewGenerator(newTestConfig(srv.URL))
	require.NoError(t, err)

	tools := []ai.ToolSpec{{
		Name:        "search_documentation",
		Description: "Search the docs",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
	}}
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: "Answer from the docs."},
		{Role: ai.RoleUser, Content: "What is a node?"},
	}

	ctx := context.Background()
	first, err := g.Generate(ctx, messages, tools)
	require.NoError(t, err)
	require.True(t, first.WantsTools())
	assert.Equal(t, ai.ToolCall{ID: "call_1", Name: "search_documentation", Arguments: `{"query":"nodes"}`}, first.ToolCalls[0])

	messages = append(messages,
		ai.Message{Role: ai.RoleAssistant, ToolCalls: first.ToolCalls},
		ai.Message{Role: ai.RoleTool, ToolCallID: "call_1", Name: "search_documentation", Content: `{"results":[]}`},
	)
	second, err := g.Generate(ctx, messages, tools)
	require.NoError(t, err)
	assert.False(t, second.WantsTools())
	assert.Equal(t, "Nodes are processes.", second.Content)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.chatBodies, 2)
	assert.Len(t, f.chatBodies[0]["tools"], 1)

	sent := f.chatBodies[1]["messages"].([]any)
	require.Len(t, sent, 4)
	assert.Equal(t, "assistant", sent[2].(map[string]any)["role"])
	toolMsg := sent[3].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
}

func TestToMessageContent_RejectsUnknownRole(t *testing.T) {
	_, err := toMessageContent([]ai.Message{{Role: "narrator", Content: "x"}})
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	p, err := NewProvider(newTestConfig("http://localhost:1"))
	require.NoError(t, err)
	assert.NotNil(t, p.Embedder())
	assert.NotNil(t, p.Generator())
	assert.NoError(t, p.Close())

	_, err = NewProvider(&ai.Config{})
	assert.Error(t, err)
}
