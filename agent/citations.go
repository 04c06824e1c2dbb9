package agent

import (
	"regexp"
	"strings"

	"github.com/poiesic/docrag/core"
)

// MaxCitations caps the citations attached to one answer.
const MaxCitations = 10

var citationPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)

// ExtractCitations returns the Markdown links of an answer in order of first
// appearance, one per URL, at most MaxCitations.
func ExtractCitations(answer string) []core.Citation {
	citations := []core.Citation{}
	seen := make(map[string]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		title, url := strings.TrimSpace(m[1]), m[2]
		if seen[url] {
			continue
		}
		seen[url] = true
		citations = append(citations, core.Citation{Title: title, URL: url})
		if len(citations) == MaxCitations {
			break
		}
	}
	return citations
}
