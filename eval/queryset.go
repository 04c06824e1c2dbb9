package eval

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed queries.yaml
var defaultQuerySet []byte

// TestQuery is one evaluation query.
type TestQuery struct {
	Text           string   `yaml:"text"`
	Category       string   `yaml:"category"`
	ExpectedTopics []string `yaml:"expected_topics"`
}

// GroundTruth maps query text to the URLs relevant to it.
type GroundTruth map[string][]string

// QuerySet is an ordered list of queries plus the ground truth for a subset.
type QuerySet struct {
	BaseURL     string      `yaml:"base_url"`
	Queries     []TestQuery `yaml:"queries"`
	GroundTruth GroundTruth `yaml:"ground_truth"`
}

// DefaultQuerySet returns the embedded query set.
func DefaultQuerySet() (*QuerySet, error) {
	return ParseQuerySet(defaultQuerySet)
}

// LoadQuerySet reads a query set from a YAML file.
func LoadQuerySet(path string) (*QuerySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query set: %w", err)
	}
	return ParseQuerySet(data)
}

// ParseQuerySet decodes and validates a YAML query set. Relative
// ground-truth URLs are resolved against base_url.
func ParseQuerySet(data []byte) (*QuerySet, error) {
	var qs QuerySet
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse query set: %w", err)
	}
	if err := qs.Validate(); err != nil {
		return nil, err
	}
	if qs.BaseURL != "" {
		if err := qs.Rebase(qs.BaseURL); err != nil {
			return nil, err
		}
	}
	return &qs, nil
}

// Validate checks that the set has queries and that every ground-truth
// entry refers to one of them.
func (qs *QuerySet) Validate() error {
	if len(qs.Queries) == 0 {
		return ErrEmptyQuerySet
	}
	known := make(map[string]bool, len(qs.Queries))
	for _, q := range qs.Queries {
		known[q.Text] = true
	}
	for text := range qs.GroundTruth {
		if !known[text] {
			return fmt.Errorf("%w: %q", ErrUnknownGroundTruth, text)
		}
	}
	return nil
}

// Rebase points the ground truth at another deployment of the same site.
// Every URL keeps its path and takes the scheme and host of base.
func (qs *QuerySet) Rebase(base string) error {
	b, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || b.Scheme == "" || b.Host == "" {
		return fmt.Errorf("rebase query set: invalid base url %q", base)
	}
	for text, urls := range qs.GroundTruth {
		rebased := make([]string, len(urls))
		for i, raw := range urls {
			u, err := url.Parse(raw)
			if err != nil {
				return fmt.Errorf("rebase query set: %w", err)
			}
			u.Scheme, u.Host = b.Scheme, b.Host
			if !strings.HasPrefix(u.Path, "/") {
				u.Path = "/" + u.Path
			}
			rebased[i] = u.String()
		}
		qs.GroundTruth[text] = rebased
	}
	qs.BaseURL = b.String()
	return nil
}

// Relevant returns the ground-truth URLs for a query and whether any exist.
func (qs *QuerySet) Relevant(query string) ([]string, bool) {
	urls, ok := qs.GroundTruth[query]
	return urls, ok && len(urls) > 0
}
