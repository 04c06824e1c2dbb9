// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	vec, err := embedder.EmbedText(ctx, "ros 2 nodes", ai.ModeQuery)
//	modes := embedder.Modes() // [query]
//
//	generator := mock.NewMockGenerator(
//	    mock.ToolCallCompletion("call_1", "search_documentation", `{"query":"nodes"}`),
//	    mock.TextCompletion("Nodes are processes."),
//	)
//
// # Default Behavior
//
//   - MockEmbedder: Returns bag-of-words vectors so shared vocabulary ranks higher
//   - MockGenerator: Replays its script, then fails with ErrScriptExhausted
//   - MockProvider: Aggregates mock embedder and generator
package mock
