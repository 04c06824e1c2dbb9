package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/poiesic/docrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docusaurusPage = `<!doctype html>
<html><head><title>Week 3: ROS 2 Architecture | Physical AI</title>
<script>var x = 1;</script></head>
<body>
<nav><a href="/docs/intro">Intro</a></nav>
<main>
  <article>
    <div class="theme-doc-markdown markdown">
      <header><h1>ROS 2 Architecture<a class="hash-link" href="#x">#</a></h1></header>
      <p>ROS 2 is built on DDS.</p>
      <h2 id="nodes">Nodes</h2>
      <p>A node is a process that performs computation.</p>
      <ul><li>publishers</li><li>subscribers</li></ul>
      <h3>Lifecycle</h3>
      <p>Managed nodes have states.</p>
      <h2>Topics</h2>
      <p>Topics carry messages.</p>
    </div>
  </article>
</main>
<footer>Copyright</footer>
</body></html>`

func newTestExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := NewExtractor(append([]Option{WithRateLimit(0, 0)}, opts...)...)
	require.NoError(t, err)
	return e
}

func TestParseHTML_SectionsAndTitle(t *testing.T) {
	page, err := ParseHTML("https://book.example.com/docs/ros2", strings.NewReader(docusaurusPage))
	require.NoError(t, err)

	assert.Equal(t, "Week 3: ROS 2 Architecture | Physical AI", page.Title)
	require.Len(t, page.Sections, 4)

	assert.Equal(t, "ROS 2 Architecture", page.Sections[0].Heading)
	assert.Equal(t, "ROS 2 is built on DDS.", page.Sections[0].Text)
	assert.Equal(t, 1, page.Sections[0].Level)

	assert.Equal(t, "ROS 2 Architecture > Nodes", page.Sections[1].Heading)
	assert.Equal(t, "A node is a process that performs computation. publishers subscribers", page.Sections[1].Text)

	assert.Equal(t, "ROS 2 Architecture > Nodes > Lifecycle", page.Sections[2].Heading)
	assert.Equal(t, 3, page.Sections[2].Level)

	assert.Equal(t, "ROS 2 Architecture > Topics", page.Sections[3].Heading)
	assert.Equal(t, "Topics carry messages.", page.Sections[3].Text)

	assert.NotContains(t, page.Text(), "Copyright")
	assert.NotContains(t, page.Text(), "var x")
}

func TestParseHTML_PreambleKept(t *testing.T) {
	html := `<html><body><main><p>Welcome text.</p><h2>Install</h2><p>Run the installer.</p></main></body></html>`
	page, err := ParseHTML("https://docs.example.com/setup/", strings.NewReader(html))
	require.NoError(t, err)

	require.Len(t, page.Sections, 2)
	assert.Equal(t, core.NoHeading, page.Sections[0].Heading)
	assert.Equal(t, "Welcome text.", page.Sections[0].Text)
	assert.Equal(t, "Install", page.Sections[1].Heading)
	assert.Equal(t, "setup", page.Title, "title falls back to the last path segment")
}

func TestParseHTML_BodyFallback(t *testing.T) {
	page, err := ParseHTML("https://docs.example.com/", strings.NewReader(`<html><body><p>plain body</p></body></html>`))
	require.NoError(t, err)
	require.Len(t, page.Sections, 1)
	assert.Equal(t, "plain body", page.Sections[0].Text)
	assert.Equal(t, "docs.example.com", page.Title)
}

func TestParseHTML_EmptyBody(t *testing.T) {
	_, err := ParseHTML("https://docs.example.com/x", strings.NewReader(`<html><head><title>t</title></head><body>  </body></html>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrParse)

	var perr *core.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "https://docs.example.com/x", perr.URL)
}

func TestParseHTML_KeepsRawBody(t *testing.T) {
	page, err := ParseHTML("https://docs.example.com/", strings.NewReader(docusaurusPage))
	require.NoError(t, err)
	assert.Equal(t, docusaurusPage, page.HTML, "raw markup is kept before noise is stripped")
}

func TestParseHTML_ReadError(t *testing.T) {
	_, err := ParseHTML("https://docs.example.com/x", iotest.ErrReader(errors.New("connection reset")))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrParse)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestExtract(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/docs/ros2":
			w.Write([]byte(docusaurusPage))
		case "/empty":
			w.Write([]byte("<html><body></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newTestExtractor(t, WithUserAgent("docrag-test"))
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		page, err := e.Extract(ctx, srv.URL+"/docs/ros2")
		require.NoError(t, err)
		assert.Len(t, page.Sections, 4)
		assert.Equal(t, "docrag-test", gotUA.Load())
	})

	t.Run("not found is a fetch error", func(t *testing.T) {
		_, err := e.Extract(ctx, srv.URL+"/missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrFetch)
		var ferr *core.FetchError
		require.True(t, errors.As(err, &ferr))
		assert.Equal(t, http.StatusNotFound, ferr.StatusCode)
		assert.True(t, IsPageError(err))
	})

	t.Run("empty page is a parse error", func(t *testing.T) {
		_, err := e.Extract(ctx, srv.URL+"/empty")
		assert.ErrorIs(t, err, core.ErrParse)
		assert.True(t, IsPageError(err))
	})

	t.Run("unreachable host is a fetch error", func(t *testing.T) {
		_, err := e.Extract(ctx, "http://127.0.0.1:1/nothing")
		assert.ErrorIs(t, err, core.ErrFetch)
	})
}

func TestNewExtractor_Options(t *testing.T) {
	_, err := NewExtractor(WithHTTPClient(nil))
	assert.ErrorIs(t, err, ErrHTTPClientRequired)

	_, err = NewExtractor(WithMaxPages(0))
	assert.ErrorIs(t, err, ErrInvalidMaxPages)

	e, err := NewExtractor(WithRateLimit(0, 0), WithLogger(nil))
	require.NoError(t, err)
	assert.Nil(t, e.limiter)
}
