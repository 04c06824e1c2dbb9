package mock

import (
	"context"
	"testing"

	"github.com/poiesic/docrag/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestBagOfWords_SharedVocabularyScoresHigher(t *testing.T) {
	q := BagOfWords("What is a ROS 2 node?", DefaultDimension)
	near := BagOfWords("A node is a process in ROS 2.", DefaultDimension)
	far := BagOfWords("Gazebo simulates physics for robots.", DefaultDimension)

	assert.Greater(t, dot(q, near), dot(q, far))
	assert.InDelta(t, 1.0, dot(q, q), 1e-5)
	assert.InDelta(t, 1.0, dot(BagOfWords("", 8), BagOfWords("", 8)), 1e-5)
}

func TestMockEmbedder_RecordsModes(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	_, err := m.EmbedTexts(ctx, []string{"a", "b"}, ai.ModeDocument)
	require.NoError(t, err)
	_, err = m.EmbedText(ctx, "q", ai.ModeQuery)
	require.NoError(t, err)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []ai.EmbedMode{ai.ModeDocument, ai.ModeQuery}, m.Modes())
	assert.Equal(t, []string{"a", "b"}, m.Calls()[0].Texts)

	m.Reset()
	assert.Zero(t, m.CallCount())
}

func TestMockGenerator_Script(t *testing.T) {
	g := NewMockGenerator(ToolCallCompletion("1", "search_documentation", `{}`), TextCompletion("done"))
	ctx := context.Background()

	c, err := g.Generate(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, c.WantsTools())

	c, err = g.Generate(ctx, []ai.Message{{Role: ai.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", c.Content)

	_, err = g.Generate(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrScriptExhausted)
	assert.Equal(t, 3, g.CallCount())
	assert.Equal(t, "hi", g.Calls()[1].Messages[0].Content)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockGenerator(), p.Generator())
	assert.NoError(t, p.Close())
	assert.Equal(t, 1, p.Closed())

	custom := NewMockGenerator(TextCompletion("x"))
	q := NewMockProviderWithServices(nil, custom).(*MockProvider)
	assert.Same(t, custom, q.GetMockGenerator())
	assert.NotNil(t, q.GetMockEmbedder())
}
