package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
)

const (
	// SearchToolName is the name the model uses to request a search.
	SearchToolName = "search_documentation"

	// DefaultSearchK is the number of results when the model omits k.
	DefaultSearchK = 3

	// MaxSearchK bounds the k the model may request.
	MaxSearchK = 10
)

// Retriever returns ranked results for a query. *retrieval.Service implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]core.RetrievalResult, error)
}

// SearchTool describes search_documentation to the model.
func SearchTool() ai.ToolSpec {
	return ai.ToolSpec{
		Name: SearchToolName,
		Description: "Search the documentation for chunks relevant to a query. " +
			"Use it for every question about the documented product. " +
			"Returns results with title, url, heading, score and text, or an error.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "A self-contained search query. Resolve pronouns from the conversation first.",
				},
				"k": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Number of results (default %d, max %d)", DefaultSearchK, MaxSearchK),
					"minimum":     1,
					"maximum":     MaxSearchK,
				},
			},
			"required": []string{"query"},
		},
	}
}

type searchArgs struct {
	Query string `json:"query"`
	K     *int   `json:"k,omitempty"`
}

type toolHit struct {
	Rank          int     `json:"rank"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Heading       string  `json:"heading"`
	Score         float32 `json:"score"`
	LowConfidence bool    `json:"low_confidence"`
	Text          string  `json:"text"`
}

type toolError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// toolResult is the JSON document returned to the model for a tool call.
type toolResult struct {
	Results []toolHit  `json:"results"`
	Error   *toolError `json:"error"`
}

// searchOutcome classifies one executed tool call for the grounding guard.
type searchOutcome int

const (
	outcomeNotSearched searchOutcome = iota
	outcomeEmpty
	outcomeFound
	outcomeFailed
)

func clampK(k *int) int {
	if k == nil {
		return DefaultSearchK
	}
	return max(1, min(*k, MaxSearchK))
}

// runTool executes one tool call and returns its JSON result.
// Only context errors are returned; everything else is reported in the payload.
func (a *Agent) runTool(ctx context.Context, call ai.ToolCall) (string, searchOutcome, error) {
	if call.Name != SearchToolName {
		return encodeResult(toolResult{Error: &toolError{
			Kind:    "unknown_tool",
			Message: fmt.Sprintf("no tool named %q", call.Name),
		}}), outcomeNotSearched, nil
	}

	var args searchArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		msg := "query is required"
		if err != nil {
			msg = fmt.Sprintf("invalid arguments: %v", err)
		}
		return encodeResult(toolResult{Error: &toolError{Kind: "invalid_arguments", Message: msg}}), outcomeNotSearched, nil
	}
	k := clampK(args.K)

	a.logger.Debug("searching documentation", "query", args.Query, "k", k)
	results, err := a.retriever.Retrieve(ctx, args.Query, k)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", outcomeFailed, err
		}
		a.logger.Warn("search failed", "query", args.Query, "err", err)
		return encodeResult(toolResult{Error: &toolError{
			Kind:      core.ErrorKind(err),
			Message:   "Retrieval failed: " + err.Error(),
			Retryable: retryable(err),
		}}), outcomeFailed, nil
	}

	hits := make([]toolHit, len(results))
	for i, r := range results {
		hits[i] = toolHit{
			Rank:          r.Rank,
			Title:         r.Title,
			URL:           r.URL,
			Heading:       r.Heading,
			Score:         r.Score,
			LowConfidence: r.LowConfidence,
			Text:          r.Text,
		}
	}
	outcome := outcomeFound
	if len(hits) == 0 {
		outcome = outcomeEmpty
	}
	return encodeResult(toolResult{Results: hits}), outcome, nil
}

func retryable(err error) bool {
	return errors.Is(err, core.ErrIndexUnavailable) || errors.Is(err, core.ErrEmbedding)
}

func encodeResult(r toolResult) string {
	if r.Results == nil {
		r.Results = []toolHit{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return `{"results":[],"error":{"kind":"internal_error","message":"unencodable result","retryable":false}}`
	}
	return string(data)
}
