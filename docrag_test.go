package docrag

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docrag/agent"
	"github.com/poiesic/docrag/ai/mock"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/eval"
	"github.com/poiesic/docrag/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 1024

var (
	nodeWords  = []string{"node", "process", "executable", "spin", "callback", "executor", "lifecycle", "graph", "namespace", "remap"}
	topicWords = []string{"topic", "publisher", "subscriber", "message", "queue", "qos", "reliable", "durability", "history", "depth"}
)

// repeat builds n words by cycling through vocab.
func repeat(vocab []string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = vocab[i%len(vocab)]
	}
	return strings.Join(words, " ")
}

func numbered(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(words, " ")
}

// newSite serves a two-page documentation site with a sitemap.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%[1]s/docs/a</loc></url>
<url><loc>%[1]s/docs/b</loc></url>
<url><loc>%[1]s/blog/unrelated</loc></url>
</urlset>`, srv.URL)
	})
	mux.HandleFunc("/docs/a", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Alpha</title></head><body>
<nav>menu</nav><article><h1>Install</h1><p>%s</p></article></body></html>`, numbered("aword", 600))
	})
	mux.HandleFunc("/docs/b", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Beta</title></head><body><article>
<h2>Nodes</h2><p>%s</p><h2>Topics</h2><p>%s</p></article></body></html>`,
			repeat(nodeWords, 300), repeat(topicWords, 300))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, roots ...string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.InMemory = true
	cfg.Site.Roots = roots
	cfg.Site.RateLimit = 0
	cfg.Chunking.Tokenizer = config.TokenizerWords
	return cfg
}

func openTest(t *testing.T, cfg *config.Config, generator *mock.MockGenerator) (*System, *mock.MockEmbedder) {
	t.Helper()
	embedder := mock.NewMockEmbedder()
	embedder.Dimension = testDim
	if generator == nil {
		generator = mock.NewMockGenerator()
	}
	s, err := Open(context.Background(), cfg,
		WithProvider(mock.NewMockProviderWithServices(embedder, generator)),
		WithSleeper(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, embedder
}

func TestOpen(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		s, err := Open(context.Background(), nil)
		assert.ErrorIs(t, err, ErrConfigRequired)
		assert.Nil(t, s)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Chunking.OverlapTokens = cfg.Chunking.MaxTokens
		_, err := Open(context.Background(), cfg)
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// data dir is a file, so badger cannot create its directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		cfg := testConfig(t)
		cfg.InMemory = false
		cfg.DataDir = tmpFile
		s, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, s)
	})

	t.Run("builds providers from config", func(t *testing.T) {
		s, err := Open(context.Background(), testConfig(t))
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, "embeddinggemma", s.Embedder().ModelName())
	})

	t.Run("on disk with sqlite sessions", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.InMemory = false
		cfg.Session.Backend = config.BackendSQLite
		s, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)

		_, err = os.Stat(cfg.BadgerPath())
		assert.NoError(t, err)

		turn, err := s.Sessions().AppendTurn(context.Background(), &core.ConversationTurn{
			SessionID: "s1", Role: core.RoleUser, Content: "hello",
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), turn.Seq)
		require.NoError(t, s.Close())

		_, err = os.Stat(cfg.SessionPath())
		assert.NoError(t, err)
	})
}

func TestSystem_Close(t *testing.T) {
	cfg := testConfig(t)
	cfg.InMemory = false
	provider := mock.NewMockProvider().(*mock.MockProvider)
	s, err := Open(context.Background(), cfg, WithProvider(provider))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, provider.Closed())
}

func TestSystem_EndToEnd(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/docs/")
	s, _ := openTest(t, cfg, nil)
	ctx := context.Background()

	report, err := s.Ingest(ctx, ingestion.WithPrefetch(2))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Discovered, "the blog page is outside the root")
	assert.Equal(t, 2, report.Processed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 4, report.Chunks)

	var chunksA, chunksB []*core.IndexEntry
	require.NoError(t, s.stores.Index.Scan(ctx, 10, func(entries []*core.IndexEntry) error {
		for _, e := range entries {
			switch e.Payload.URL {
			case srv.URL + "/docs/a":
				chunksA = append(chunksA, e)
			case srv.URL + "/docs/b":
				chunksB = append(chunksB, e)
			}
		}
		return nil
	}))
	require.Len(t, chunksA, 2)
	require.Len(t, chunksB, 2)

	byOrdinal := func(entries []*core.IndexEntry, ordinal int) core.Payload {
		for _, e := range entries {
			if e.Payload.Ordinal == ordinal {
				return e.Payload
			}
		}
		t.Fatalf("no chunk with ordinal %d", ordinal)
		return core.Payload{}
	}

	first, second := byOrdinal(chunksA, 0), byOrdinal(chunksA, 1)
	assert.Equal(t, 512, first.TokenCount)
	assert.Equal(t, 138, second.TokenCount)
	assert.Equal(t, "Install", first.Heading)
	firstWords := strings.Fields(first.Text)
	secondWords := strings.Fields(second.Text)
	assert.Equal(t, firstWords[len(firstWords)-50:], secondWords[:50], "consecutive chunks share 50 tokens")
	assert.Equal(t, "aword599", secondWords[len(secondWords)-1])

	assert.Equal(t, "Nodes", byOrdinal(chunksB, 0).Heading)
	assert.Equal(t, "Topics", byOrdinal(chunksB, 1).Heading)
	assert.Equal(t, 300, byOrdinal(chunksB, 1).TokenCount)

	results, err := s.Retrieval().Retrieve(ctx, "publisher subscriber message queue qos", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, srv.URL+"/docs/b", results[0].URL)
	assert.Equal(t, "Topics", results[0].Heading)
	assert.Greater(t, results[0].Score, float32(0.5))
	assert.False(t, results[0].LowConfidence)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Entries)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, 2, status.LastRun.Processed)

	// Re-ingesting changes nothing.
	again, err := s.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Vectors, again.Vectors)
	status, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Entries)

	r, err := s.NewReembedder()
	require.NoError(t, err)
	n, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, s.Reset(ctx))
	status, err = s.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Entries)
}

func TestSystem_IngestRequiresRoots(t *testing.T) {
	s, _ := openTest(t, testConfig(t), nil)
	_, err := s.Ingest(context.Background())
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestSystem_AgentAnswersFromIndex(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/docs/")
	pageB := srv.URL + "/docs/b"
	generator := mock.NewMockGenerator(
		mock.ToolCallCompletion("call-1", agent.SearchToolName, `{"query":"publisher subscriber message"}`),
		mock.TextCompletion(fmt.Sprintf("Publishers send messages to subscribers over a topic. See [Beta](%s).", pageB)),
	)
	s, _ := openTest(t, cfg, generator)
	ctx := context.Background()

	_, err := s.Ingest(ctx)
	require.NoError(t, err)

	a, err := s.NewAgent()
	require.NoError(t, err)

	reply, err := a.Chat(ctx, agent.ChatRequest{SessionID: "e2e", Message: "How do topics work?"})
	require.NoError(t, err)
	assert.Nil(t, reply.Error)
	assert.Contains(t, reply.Answer, "Publishers send messages")
	assert.Equal(t, []core.Citation{{Title: "Beta", URL: pageB}}, reply.Citations)

	history, err := s.Sessions().History(ctx, "e2e")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Len(t, history[1].ToolInvocations, 1)
	assert.Contains(t, history[1].ToolInvocations[0].Result, pageB)
}

func TestSystem_AgentInstructionsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agent.InstructionsFile = filepath.Join(t.TempDir(), "missing.txt")
	s, _ := openTest(t, cfg, nil)

	_, err := s.NewAgent()
	assert.ErrorIs(t, err, core.ErrConfiguration)

	path := filepath.Join(t.TempDir(), "instructions.txt")
	require.NoError(t, os.WriteFile(path, []byte("Answer briefly."), 0o644))
	s.config.Agent.InstructionsFile = path
	_, err = s.NewAgent()
	assert.NoError(t, err)
}

func TestSystem_Evaluator(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/docs/")
	s, _ := openTest(t, cfg, nil)
	ctx := context.Background()

	_, err := s.Ingest(ctx)
	require.NoError(t, err)

	var seen int
	ev, err := s.NewEvaluator(eval.WithObserver(func(index, total int, qr *eval.QueryResult) { seen++ }))
	require.NoError(t, err)

	report, err := ev.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Total())
	assert.Equal(t, 12, seen)
	assert.Equal(t, 7, report.GroundTruthQueries)
	assert.False(t, report.Pass, "the fixture site does not cover the default queries")
}
