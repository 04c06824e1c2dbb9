package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQuerySet(t *testing.T) {
	qs, err := DefaultQuerySet()
	require.NoError(t, err)

	assert.Len(t, qs.Queries, 12)
	assert.Len(t, qs.GroundTruth, 7)

	categories := map[string]bool{}
	for _, q := range qs.Queries {
		categories[q.Category] = true
		assert.NotEmpty(t, q.ExpectedTopics, q.Text)
	}
	assert.Len(t, categories, 5)

	urls, ok := qs.Relevant("How do I set up a ROS 2 workspace?")
	require.True(t, ok)
	assert.Contains(t, urls, "https://book-hthon.vercel.app/docs/intro")

	_, ok = qs.Relevant("Unity ML-Agents integration with ROS")
	assert.False(t, ok)
}

func TestQuerySet_Rebase(t *testing.T) {
	qs, err := DefaultQuerySet()
	require.NoError(t, err)

	require.NoError(t, qs.Rebase("http://localhost:3000/"))
	urls, _ := qs.Relevant("Building an autonomous humanoid robot project")
	assert.Equal(t, []string{"http://localhost:3000/docs/capstone/", "http://localhost:3000/docs/intro"}, urls)
	assert.Equal(t, "http://localhost:3000", qs.BaseURL)

	assert.Error(t, qs.Rebase("not a url"))
}

func TestLoadQuerySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
queries:
  - text: what is a node
    category: basics
    expected_topics: [node]
ground_truth:
  what is a node: [https://d/nodes]
`), 0o644))

	qs, err := LoadQuerySet(path)
	require.NoError(t, err)
	assert.Equal(t, "basics", qs.Queries[0].Category)
	assert.Equal(t, []string{"https://d/nodes"}, qs.GroundTruth["what is a node"])

	require.NoError(t, os.WriteFile(path, []byte("queries:\n  - text: a\nground_truth:\n  b: [x]\n"), 0o644))
	_, err = LoadQuerySet(path)
	assert.ErrorIs(t, err, ErrUnknownGroundTruth)

	_, err = LoadQuerySet(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseQuerySet([]byte("queries: ["))
	assert.Error(t, err)
}
