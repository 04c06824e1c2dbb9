package eval

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const excerptLen = 150

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var rule = strings.Repeat("─", 60)

// Excerpt shortens text to n runes, appending "..." when it was cut.
func Excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// RenderQuery writes the top results of one query.
func RenderQuery(w io.Writer, index, total int, qr *QueryResult, threshold float32) {
	fmt.Fprintln(w, dimStyle.Render(rule))
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Query %d/%d: %q", index, total, qr.Query.Text)))
	fmt.Fprintf(w, "Category: %s\n", qr.Query.Category)
	fmt.Fprintln(w, dimStyle.Render(rule))

	if !qr.HasResults {
		fmt.Fprintln(w, warnStyle.Render("No results found (the index may not cover this query)"))
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "Top %d Results:\n\n", len(qr.Results))
	for _, r := range qr.Results {
		fmt.Fprintf(w, "%d. Score: %.4f\n", r.Rank, r.Score)
		fmt.Fprintf(w, "   Title: %s\n", r.Title)
		fmt.Fprintf(w, "   Heading: %s\n", r.Heading)
		fmt.Fprintf(w, "   URL: %s\n", r.URL)
		fmt.Fprintf(w, "   Text: %s\n\n", Excerpt(r.Text, excerptLen))
	}
	if qr.TopScore < threshold {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf(
			"Low confidence (top score < %.2f). Consider rephrasing the query or adding content.", threshold)))
	}
	if qr.HasGroundTruth {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("precision@3 %.2f  precision@5 %.2f", qr.PrecisionAt3, qr.PrecisionAt5)))
	}
	fmt.Fprintln(w)
}

// RenderSummary writes the aggregate statistics and the verdict.
func RenderSummary(w io.Writer, r *Report) {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Summary Statistics"))
	fmt.Fprintf(&b, "Total Queries: %d\n", r.Total())
	fmt.Fprintf(&b, "Average Top-1 Score: %.2f\n", r.AvgTopScore)
	fmt.Fprintf(&b, "Queries with Top-1 Score >= %.2f: %d/%d (%.0f%%)\n",
		r.Threshold, r.AboveThreshold, r.Total(), r.RelevanceFraction*100)
	if r.GroundTruthQueries > 0 {
		fmt.Fprintf(&b, "Precision@3 (%d ground-truth queries): %.2f\n", r.GroundTruthQueries, r.AvgPrecisionAt3)
		fmt.Fprintf(&b, "Precision@5 (%d ground-truth queries): %.2f\n", r.GroundTruthQueries, r.AvgPrecisionAt5)
	}
	b.WriteString("\n")
	if r.Pass {
		b.WriteString(passStyle.Render("PASS: retrieval quality meets the success criteria"))
	} else {
		b.WriteString(failStyle.Render("FAIL: retrieval quality does not meet the success criteria"))
		for _, reason := range r.Reasons {
			b.WriteString("\n  - " + reason)
		}
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
