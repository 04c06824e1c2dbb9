package chunk

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docrag/core"
)

const (
	DefaultMaxTokens     = 512
	DefaultOverlapTokens = 50
)

// Chunker splits extracted pages into bounded, heading-aware chunks.
// It is safe for concurrent use if its Tokenizer is.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	tokenizer     Tokenizer
	logger        *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithMaxTokens sets the upper bound on tokens per chunk.
func WithMaxTokens(n int) Option {
	return func(c *Chunker) error {
		if n < 1 {
			return ErrInvalidMaxTokens
		}
		c.maxTokens = n
		return nil
	}
}

// WithOverlapTokens sets how many tokens adjacent chunks of one section share.
func WithOverlapTokens(n int) Option {
	return func(c *Chunker) error {
		if n < 0 {
			return ErrInvalidOverlap
		}
		c.overlapTokens = n
		return nil
	}
}

// WithTokenizer sets the tokenizer used to measure and cut text.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) error {
		if t == nil {
			return ErrTokenizerRequired
		}
		c.tokenizer = t
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewChunker creates a chunker. Without WithTokenizer, chunks are measured in words.
func NewChunker(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxTokens:     DefaultMaxTokens,
		overlapTokens: DefaultOverlapTokens,
		tokenizer:     WordTokenizer{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.overlapTokens >= c.maxTokens {
		return nil, ErrInvalidOverlap
	}
	c.logger = c.logger.With("component", "chunker")
	return c, nil
}

// MaxTokens returns the configured chunk bound.
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// OverlapTokens returns the configured overlap.
func (c *Chunker) OverlapTokens() int { return c.overlapTokens }

// Chunk splits a page into chunks, section by section, in document order.
// Ordinals run across the whole page. A page without text yields no chunks.
func (c *Chunker) Chunk(page *core.Page) []core.Chunk {
	if page == nil {
		return nil
	}

	var chunks []core.Chunk
	for _, section := range page.Sections {
		pieces := c.tokenizer.Split(section.Text)
		if len(pieces) == 0 {
			continue
		}
		heading := section.Heading
		if heading == "" {
			heading = core.NoHeading
		}
		for _, w := range c.windows(pieces) {
			text := strings.TrimSpace(strings.Join(pieces[w.start:w.end], ""))
			if text == "" {
				continue
			}
			ordinal := len(chunks)
			chunks = append(chunks, core.Chunk{
				ID:         core.ChunkID(page.URL, ordinal),
				URL:        page.URL,
				Title:      page.Title,
				Heading:    heading,
				Ordinal:    ordinal,
				Text:       text,
				TokenCount: w.end - w.start,
			})
		}
	}

	c.logger.Debug("chunked page", "url", page.URL, "sections", len(page.Sections), "chunks", len(chunks))
	return chunks
}

type span struct {
	start, end int
}

// windows computes token spans for one section.
func (c *Chunker) windows(pieces []string) []span {
	n := len(pieces)
	if n <= c.maxTokens {
		return []span{{0, n}}
	}

	var spans []span
	start := 0
	for {
		end := start + c.maxTokens
		if end >= n {
			spans = append(spans, span{start, n})
			return spans
		}
		end = alignCut(pieces, start, c.sentenceCut(pieces, start, end))
		spans = append(spans, span{start, end})
		if end >= n {
			return spans
		}

		next := end - c.overlapTokens
		if next > start {
			next = alignCut(pieces, start, next)
		}
		if next <= start {
			next = end
		}
		start = next
	}
}

// alignCut moves a cut off the middle of a multi-byte character.
// BPE pieces can hold single bytes of one rune, so a cut is only safe
// where the next piece begins a rune. It prefers moving back, past lo
// only when no earlier cut exists.
func alignCut(pieces []string, lo, i int) int {
	for j := i; j > lo; j-- {
		if runeStart(pieces, j) {
			return j
		}
	}
	for j := i + 1; j < len(pieces); j++ {
		if runeStart(pieces, j) {
			return j
		}
	}
	return len(pieces)
}

func runeStart(pieces []string, i int) bool {
	for ; i < len(pieces); i++ {
		if pieces[i] != "" {
			return utf8.RuneStart(pieces[i][0])
		}
	}
	return true
}

// sentenceCut moves a cut back to the last sentence end in the upper half of the window.
func (c *Chunker) sentenceCut(pieces []string, start, end int) int {
	floor := start + c.maxTokens/2
	for i := end; i > floor; i-- {
		if isSentenceEnd(pieces[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(piece string) bool {
	p := strings.TrimRight(strings.TrimSpace(piece), "\"')]”’")
	if p == "" {
		return false
	}
	switch p[len(p)-1] {
	case '.', '!', '?':
		return true
	}
	return strings.HasSuffix(p, "…")
}
