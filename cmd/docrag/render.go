package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/poiesic/docrag"
	"github.com/poiesic/docrag/agent"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/eval"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func renderResults(w io.Writer, query string, results []core.RetrievalResult, threshold float32) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Results for %q", query)))
	if len(results) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No results. Has the site been ingested?"))
		return
	}
	fmt.Fprintln(w)
	for _, r := range results {
		score := fmt.Sprintf("%.4f", r.Score)
		if r.LowConfidence {
			score = warnStyle.Render(score + " low")
		}
		fmt.Fprintf(w, "%d. %s  %s\n", r.Rank, titleStyle.Render(r.Title), score)
		fmt.Fprintf(w, "   %s\n", dimStyle.Render(r.Heading))
		fmt.Fprintf(w, "   %s\n", r.URL)
		fmt.Fprintf(w, "   %s\n\n", eval.Excerpt(r.Text, 200))
	}
	if results[0].LowConfidence {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Low confidence: top score %.2f < %.2f", results[0].Score, threshold)))
	}
}

func renderRunReport(w io.Writer, r *core.RunReport) {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Ingestion"))
	fmt.Fprintf(&b, "Roots: %s\n", r.Root)
	fmt.Fprintf(&b, "Pages discovered: %d\n", r.Discovered)
	fmt.Fprintf(&b, "Pages processed: %d\n", r.Processed)
	fmt.Fprintf(&b, "Pages failed: %d\n", r.Failed)
	fmt.Fprintf(&b, "Chunks indexed: %d\n", r.Chunks)
	fmt.Fprintf(&b, "Elapsed: %s", r.Elapsed.Round(time.Millisecond))
	if r.Aborted != "" {
		fmt.Fprintf(&b, "\n%s", errStyle.Render("Aborted: "+r.Aborted))
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))

	if len(r.Failures) > 0 {
		fmt.Fprintln(w, failureTable(r.Failures))
	}
}

func failureTable(failures []core.PageFailure) string {
	rows := make([][]string, len(failures))
	for i, f := range failures {
		rows[i] = []string{f.Kind, f.URL, eval.Excerpt(f.Message, 80)}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("KIND", "URL", "MESSAGE").
		Rows(rows...).
		String()
}

func renderReply(w io.Writer, reply *agent.Reply) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, reply.Answer)
	if len(reply.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Sources:"))
		for _, c := range reply.Citations {
			fmt.Fprintf(w, "  - %s %s\n", c.Title, dimStyle.Render(c.URL))
		}
	}
	if reply.Error != nil {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("(%s, error id %s)", reply.Error.Kind, reply.Error.ErrorID)))
	}
	fmt.Fprintln(w)
}

func renderStatus(w io.Writer, s *docrag.Status) {
	var b strings.Builder
	fmt.Fprintln(&b, titleStyle.Render("Index"))
	fmt.Fprintf(&b, "Backend: %s\n", s.IndexBackend)
	fmt.Fprintf(&b, "Sessions: %s\n", s.SessionBackend)
	fmt.Fprintf(&b, "Embedding model: %s\n", s.EmbeddingModel)
	fmt.Fprintf(&b, "Chunks: %d", s.Entries)
	if run := s.LastRun; run != nil {
		fmt.Fprintf(&b, "\n\n%s\n", titleStyle.Render("Last run"))
		fmt.Fprintf(&b, "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
		fmt.Fprintf(&b, "Roots: %s\n", run.Root)
		fmt.Fprintf(&b, "Pages: %d processed, %d failed of %d\n", run.Processed, run.Failed, run.Discovered)
		fmt.Fprintf(&b, "Chunks: %d", run.Chunks)
		if run.Aborted != "" {
			fmt.Fprintf(&b, "\n%s", errStyle.Render("Aborted: "+run.Aborted))
		}
	} else {
		fmt.Fprintf(&b, "\n%s", dimStyle.Render("No ingestion run recorded."))
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
