package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/extract"
	"github.com/poiesic/docrag/storage"
)

// scanBatchSize bounds the batches read when listing already indexed pages.
const scanBatchSize = 256

// PageSource lists and extracts pages. *extract.Extractor implements it.
type PageSource interface {
	Discover(ctx context.Context, root string) ([]string, error)
	Extract(ctx context.Context, pageURL string) (*core.Page, error)
}

// Chunker splits a page into chunks. *chunk.Chunker implements it.
type Chunker interface {
	Chunk(page *core.Page) []core.Chunk
}

// Embedder produces vectors for batches of text. *embedding.Client implements it.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode ai.EmbedMode) ([][]float32, error)
}

// Pipeline orchestrates discovery, extraction, chunking, embedding and
// indexing of a documentation site.
type Pipeline struct {
	source   PageSource
	chunker  Chunker
	embedder Embedder
	index    storage.VectorIndex
	runs     storage.RunStore
	pool     *ants.Pool
	prefetch int
	reset    bool
	observer StateObserver
	progress io.Writer
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPrefetch sets how many pages are fetched and chunked ahead of the
// page being indexed. Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPrefetch(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return ErrInvalidPrefetch
		}
		p.prefetch = n
		return nil
	}
}

// WithRunStore persists the report of every run.
func WithRunStore(runs storage.RunStore) Option {
	return func(p *Pipeline) error {
		p.runs = runs
		return nil
	}
}

// WithReset clears the index before ingesting.
func WithReset(reset bool) Option {
	return func(p *Pipeline) error {
		p.reset = reset
		return nil
	}
}

// WithStateObserver registers a hook called on every state transition.
func WithStateObserver(observer StateObserver) Option {
	return func(p *Pipeline) error {
		p.observer = observer
		return nil
	}
}

// WithProgress writes a progress line to w while pages are processed.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	source PageSource,
	chunker Chunker,
	embedder Embedder,
	index storage.VectorIndex,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrPageSourceRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	p := &Pipeline{
		source:   source,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		prefetch: max(runtime.NumCPU()/2, 1),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	pool, err := ants.NewPool(p.prefetch)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Run discovers the pages under every root and ingests them.
func (p *Pipeline) Run(ctx context.Context, roots ...string) (*core.RunReport, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	report := &core.RunReport{Root: strings.Join(roots, ","), StartedAt: time.Now().UTC()}

	var urls []string
	seen := make(map[string]bool)
	for _, root := range roots {
		p.setState(StateDiscovering, root)
		found, err := p.source.Discover(ctx, root)
		if err != nil {
			return p.abort(ctx, report, fmt.Errorf("discover %s: %w", root, err))
		}
		for _, u := range found {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return p.ingest(ctx, report, urls)
}

// RunURLs ingests exactly the given pages, skipping discovery.
func (p *Pipeline) RunURLs(ctx context.Context, urls ...string) (*core.RunReport, error) {
	if len(urls) == 0 {
		return nil, ErrNoRoots
	}
	report := &core.RunReport{Root: strings.Join(urls, ","), StartedAt: time.Now().UTC()}
	return p.ingest(ctx, report, urls)
}

type pageResult struct {
	page   *core.Page
	chunks []core.Chunk
	err    error
}

func (p *Pipeline) ingest(ctx context.Context, report *core.RunReport, urls []string) (*core.RunReport, error) {
	report.Discovered = len(urls)
	p.logger.Info("starting ingestion", "pages", len(urls), "reset", p.reset)

	var indexed map[string]int
	if p.reset {
		if err := p.index.Reset(ctx); err != nil {
			return p.abort(ctx, report, err)
		}
	} else {
		var err error
		if indexed, err = p.indexedPages(ctx); err != nil {
			return p.abort(ctx, report, err)
		}
	}

	// Workers stop fetching once Run returns.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan pageResult, len(urls))
	for i := range results {
		results[i] = make(chan pageResult, 1)
	}
	submit := func(i int) error {
		return p.pool.Submit(func() {
			page, err := p.source.Extract(runCtx, urls[i])
			if err != nil {
				results[i] <- pageResult{err: err}
				return
			}
			results[i] <- pageResult{page: page, chunks: p.chunker.Chunk(page)}
		})
	}
	for i := range min(p.prefetch, len(urls)) {
		if err := submit(i); err != nil {
			return p.abort(ctx, report, err)
		}
	}

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, "pages", len(urls), 1)
		tracker.Start()
		defer tracker.Finish()
	}

	ensured := false
	for i, pageURL := range urls {
		p.setState(StateExtracting, pageURL)
		var res pageResult
		select {
		case res = <-results[i]:
		case <-ctx.Done():
			return p.abort(ctx, report, ctx.Err())
		}
		if next := i + p.prefetch; next < len(urls) {
			if err := submit(next); err != nil {
				return p.abort(ctx, report, err)
			}
		}

		if res.err != nil {
			if ctx.Err() != nil {
				return p.abort(ctx, report, ctx.Err())
			}
			p.recordFailure(report, pageURL, res.err)
			if tracker != nil {
				tracker.Fail()
			}
			continue
		}

		p.setState(StateChunking, pageURL)
		if len(res.chunks) > 0 {
			if err := p.indexPage(ctx, res.chunks, &ensured); err != nil {
				return p.abort(ctx, report, fmt.Errorf("ingest %s: %w", pageURL, err))
			}
		}
		if err := p.pruneStale(ctx, pageURL, len(res.chunks), indexed[pageURL]); err != nil {
			return p.abort(ctx, report, fmt.Errorf("ingest %s: %w", pageURL, err))
		}
		report.Processed++
		report.Chunks += len(res.chunks)
		report.Vectors += len(res.chunks)
		p.logger.Debug("page ingested", "url", pageURL, "chunks", len(res.chunks))
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	report.Elapsed = time.Since(report.StartedAt)
	p.setState(StateComplete, "")
	p.logger.Info("ingestion complete",
		"discovered", report.Discovered,
		"processed", report.Processed,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"elapsed", report.Elapsed)
	p.saveReport(ctx, report)
	return report, nil
}

// indexPage embeds every chunk of a page and upserts them in one call.
func (p *Pipeline) indexPage(ctx context.Context, chunks []core.Chunk, ensured *bool) error {
	p.setState(StateEmbedding, chunks[0].URL)
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := p.embedder.Embed(ctx, texts, ai.ModeDocument)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return &core.EmbeddingError{Size: len(chunks), Attempts: 1,
			Err: fmt.Errorf("received %d vectors for %d chunks", len(vectors), len(chunks))}
	}

	p.setState(StateIndexing, chunks[0].URL)
	if !*ensured {
		if err := p.index.EnsureCollection(ctx, len(vectors[0])); err != nil {
			return err
		}
		*ensured = true
	}
	entries := make([]*core.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = core.EntryFromChunk(&chunks[i], vectors[i])
	}
	return p.index.Upsert(ctx, entries...)
}

// indexedPages maps each page URL already in the index to its chunk count.
// Indexes that cannot enumerate entries yield nil.
func (p *Pipeline) indexedPages(ctx context.Context) (map[string]int, error) {
	scanner, ok := p.index.(storage.EntryScanner)
	if !ok {
		return nil, nil
	}
	counts := make(map[string]int)
	err := scanner.Scan(ctx, scanBatchSize, func(entries []*core.IndexEntry) error {
		for _, e := range entries {
			if n := e.Payload.Ordinal + 1; n > counts[e.Payload.URL] {
				counts[e.Payload.URL] = n
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan indexed pages: %w", err)
	}
	return counts, nil
}

// pruneStale deletes chunks left over from an earlier, longer version of a page.
func (p *Pipeline) pruneStale(ctx context.Context, pageURL string, kept, previous int) error {
	if previous <= kept {
		return nil
	}
	ids := make([]core.ID, 0, previous-kept)
	for ordinal := kept; ordinal < previous; ordinal++ {
		ids = append(ids, core.ChunkID(pageURL, ordinal))
	}
	p.logger.Debug("removing stale chunks", "url", pageURL, "count", len(ids))
	return p.index.Delete(ctx, ids...)
}

func (p *Pipeline) recordFailure(report *core.RunReport, pageURL string, err error) {
	kind := core.ErrorKind(err)
	if !extract.IsPageError(err) {
		p.logger.Warn("unexpected page error", "url", pageURL, "err", err)
	}
	p.logger.Info("skipping page", "url", pageURL, "kind", kind, "err", err)
	report.Failed++
	report.Failures = append(report.Failures, core.PageFailure{URL: pageURL, Kind: kind, Message: err.Error()})
}

func (p *Pipeline) abort(ctx context.Context, report *core.RunReport, err error) (*core.RunReport, error) {
	report.Elapsed = time.Since(report.StartedAt)
	report.Aborted = err.Error()
	p.setState(StateAborted, "")
	p.logger.Error("ingestion aborted", "processed", report.Processed, "err", err)
	p.saveReport(context.WithoutCancel(ctx), report)
	return report, err
}

func (p *Pipeline) saveReport(ctx context.Context, report *core.RunReport) {
	if p.runs == nil {
		return
	}
	if err := p.runs.SaveRunReport(ctx, report); err != nil {
		p.logger.Warn("failed to save run report", "err", err)
	}
}

func (p *Pipeline) setState(state State, url string) {
	p.logger.Debug("state", "state", state, "url", url)
	if p.observer != nil {
		p.observer(state, url)
	}
}
