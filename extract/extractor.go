package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/docrag/core"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent   = "docrag/1.0 (+https://github.com/poiesic/docrag)"
	defaultTimeout     = 30 * time.Second
	defaultRateLimit   = 5
	defaultMaxBodySize = 10 << 20
)

// mainSelectors are tried in order to find the main content region.
var mainSelectors = []string{"article", ".markdown", "main", "[role=main]", "body"}

// noiseSelectors are removed before any text is collected.
var noiseSelectors = "script, style, noscript, template, svg, nav, footer, aside, .hash-link, .theme-doc-toc-mobile"

// Extractor fetches documentation pages and isolates their main content.
type Extractor struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxPages  int
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) error {
		if client == nil {
			return ErrHTTPClientRequired
		}
		e.client = client
		return nil
	}
}

// WithRateLimit limits outbound requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(e *Extractor) error {
		if perSecond <= 0 {
			e.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Extractor) error {
		if ua != "" {
			e.userAgent = ua
		}
		return nil
	}
}

// WithMaxPages bounds link crawling during discovery.
func WithMaxPages(n int) Option {
	return func(e *Extractor) error {
		if n < 1 {
			return ErrInvalidMaxPages
		}
		e.maxPages = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExtractor creates an extractor with a 30s HTTP timeout and 5 requests/s.
func NewExtractor(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		client:    &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
		userAgent: defaultUserAgent,
		maxPages:  defaultMaxPages,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "extractor")
	return e, nil
}

// Extract fetches a page and returns its title and sections.
// Network and HTTP status failures are *core.FetchError; pages without a
// usable main region are *core.ParseError. Nothing is retried here.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*core.Page, error) {
	body, err := e.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	page, err := ParseHTML(pageURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	e.logger.Debug("extracted page", "url", pageURL, "title", page.Title, "sections", len(page.Sections))
	return page, nil
}

// fetch performs a rate-limited GET and returns the body of a 2xx response.
func (e *Extractor) fetch(ctx context.Context, target string) ([]byte, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &core.FetchError{URL: target, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &core.FetchError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &core.FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
	if err != nil {
		return nil, &core.FetchError{URL: target, Err: err}
	}
	return body, nil
}

// ParseHTML isolates the title and the heading-tagged sections of a page.
func ParseHTML(pageURL string, r io.Reader) (*core.Page, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &core.ParseError{URL: pageURL, Reason: "read body: " + err.Error()}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &core.ParseError{URL: pageURL, Reason: err.Error()}
	}
	title := cleanText(doc.Find("title").First().Text())
	if title == "" {
		title = titleFromURL(pageURL)
	}

	doc.Find(noiseSelectors).Remove()

	var region *goquery.Selection
	for _, sel := range mainSelectors {
		s := doc.Find(sel).First()
		if s.Length() > 0 && cleanText(s.Text()) != "" {
			region = s
			break
		}
	}
	if region == nil {
		return nil, &core.ParseError{URL: pageURL, Reason: "no main content region"}
	}

	sections := splitSections(region)
	if len(sections) == 0 {
		return nil, &core.ParseError{URL: pageURL, Reason: "main content is empty"}
	}

	return &core.Page{
		URL:      pageURL,
		Title:    title,
		HTML:     string(raw),
		Sections: sections,
	}, nil
}

// sectionBuilder accumulates text between headings.
type sectionBuilder struct {
	headings [3]string
	level    int
	text     strings.Builder
	sections []core.Section
}

func (b *sectionBuilder) flush() {
	text := cleanText(b.text.String())
	b.text.Reset()
	if text == "" {
		return
	}
	heading := b.hierarchy()
	if heading == "" {
		heading = core.NoHeading
	}
	b.sections = append(b.sections, core.Section{Heading: heading, Level: b.level, Text: text})
}

func (b *sectionBuilder) hierarchy() string {
	parts := make([]string, 0, len(b.headings))
	for _, h := range b.headings[:b.level] {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}

func (b *sectionBuilder) heading(level int, text string) {
	b.flush()
	b.headings[level-1] = text
	for i := level; i < len(b.headings); i++ {
		b.headings[i] = ""
	}
	b.level = level
}

func (b *sectionBuilder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.text.WriteString(n.Data)
		return
	case html.ElementNode:
		if level := headingLevel(n.Data); level > 0 {
			b.heading(level, cleanText(goquery.NewDocumentFromNode(n).Text()))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
	if n.Type == html.ElementNode {
		// keep words in adjacent blocks apart
		b.text.WriteByte(' ')
	}
}

func splitSections(region *goquery.Selection) []core.Section {
	b := &sectionBuilder{}
	for _, n := range region.Nodes {
		b.walk(n)
	}
	b.flush()
	return b.sections
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	}
	return 0
}

// cleanText collapses whitespace and drops zero-width characters.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u200b", "")
	return strings.Join(strings.Fields(s), " ")
}

func titleFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "." || base == "/" || base == "" {
		if u.Host != "" {
			return u.Host
		}
		return pageURL
	}
	return base
}
