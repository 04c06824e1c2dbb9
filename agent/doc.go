// Package agent answers questions about the indexed documentation in a
// multi-turn conversation.
//
// Each Chat call appends the user's message to a session log, replays the
// session to a language-generation service together with a
// search_documentation tool, and executes the tool calls the model asks for
// until it produces a final answer or the per-turn tool budget is spent.
// Answers cite their sources as Markdown links; the citations are extracted
// and stored with the assistant turn.
//
// Infrastructure failures never reach the caller as raw errors. A failed
// search is reported to the model as a structured error payload, and a
// failed generation becomes an apology carrying an ErrorInfo. Only session
// store failures and invalid requests are returned as errors.
package agent
