package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/docrag/core"
)

const defaultMaxPages = 500

// skippedExtensions are never treated as documentation pages.
var skippedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
	".pdf", ".zip", ".gz", ".css", ".js", ".json", ".xml", ".txt",
}

type sitemap struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// Discover lists the pages under root. It reads root/sitemap.xml first and
// falls back to a breadth-first link crawl limited to the same site prefix.
// The result is sorted and free of duplicates.
func (e *Extractor) Discover(ctx context.Context, root string) ([]string, error) {
	base, err := parseRoot(root)
	if err != nil {
		return nil, err
	}

	urls, err := e.fromSitemap(ctx, base)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Debug("sitemap unavailable, crawling links", "root", root, "err", err)
	}
	if len(urls) > 0 {
		e.logger.Info("discovered pages from sitemap", "root", root, "count", len(urls))
		return urls, nil
	}

	urls, err = e.crawl(ctx, base)
	if err != nil {
		return nil, err
	}
	e.logger.Info("discovered pages by crawling", "root", root, "count", len(urls))
	return urls, nil
}

func parseRoot(root string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(root))
	if err != nil {
		return nil, &core.ConfigurationError{Field: "site.root", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &core.ConfigurationError{Field: "site.root", Reason: "must be an http(s) URL"}
	}
	if u.Host == "" {
		return nil, &core.ConfigurationError{Field: "site.root", Reason: "missing host"}
	}
	u.Fragment = ""
	u.RawQuery = ""
	return u, nil
}

// fromSitemap reads sitemap.xml, following one level of sitemap index.
func (e *Extractor) fromSitemap(ctx context.Context, base *url.URL) ([]string, error) {
	sitemapURL := base.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()
	sm, err := e.readSitemap(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	locs := make([]string, 0, len(sm.URLs))
	for _, u := range sm.URLs {
		locs = append(locs, u.Loc)
	}
	for _, child := range sm.Sitemaps {
		nested, err := e.readSitemap(ctx, strings.TrimSpace(child.Loc))
		if err != nil {
			e.logger.Warn("skipping nested sitemap", "url", child.Loc, "err", err)
			continue
		}
		for _, u := range nested.URLs {
			locs = append(locs, u.Loc)
		}
	}

	var out []string
	for _, loc := range locs {
		if u, ok := sameSite(base, strings.TrimSpace(loc)); ok {
			out = append(out, u)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (e *Extractor) readSitemap(ctx context.Context, target string) (*sitemap, error) {
	body, err := e.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	var sm sitemap
	if err := xml.Unmarshal(body, &sm); err != nil {
		return nil, &core.ParseError{URL: target, Reason: err.Error()}
	}
	return &sm, nil
}

// crawl follows same-site links breadth first up to maxPages pages.
func (e *Extractor) crawl(ctx context.Context, base *url.URL) ([]string, error) {
	start := base.String()
	seen := map[string]bool{start: true}
	queue := []string{start}
	var pages []string

	for len(queue) > 0 && len(pages) < e.maxPages {
		current := queue[0]
		queue = queue[1:]

		body, err := e.fetch(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if current == start {
				return nil, err
			}
			e.logger.Warn("skipping unreachable page during crawl", "url", current, "err", err)
			continue
		}
		pages = append(pages, current)

		cur, _ := url.Parse(current)
		for _, link := range links(body) {
			ref, err := url.Parse(link)
			if err != nil {
				continue
			}
			abs, ok := sameSite(base, cur.ResolveReference(ref).String())
			if !ok || seen[abs] {
				continue
			}
			seen[abs] = true
			queue = append(queue, abs)
		}
	}

	slices.Sort(pages)
	return slices.Compact(pages), nil
}

func links(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			out = append(out, strings.TrimSpace(href))
		}
	})
	return out
}

// sameSite normalises raw and reports whether it lives under base.
func sameSite(base *url.URL, raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawQuery = ""
	if !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	if prefix != "" && u.Path != prefix && !strings.HasPrefix(u.Path, prefix+"/") {
		return "", false
	}
	lower := strings.ToLower(u.Path)
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(lower, ext) {
			return "", false
		}
	}
	return u.String(), true
}

// IsPageError reports whether err is a per-page failure that should not stop a run.
func IsPageError(err error) bool {
	return errors.Is(err, core.ErrFetch) || errors.Is(err, core.ErrParse)
}
