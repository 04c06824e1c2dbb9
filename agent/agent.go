package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/storage"
)

const (
	// DefaultMaxToolCalls bounds the tool invocations of one turn.
	DefaultMaxToolCalls = 5

	// MaxMessageLength is the longest accepted user message, in characters.
	MaxMessageLength = 2000

	// MaxContextLength is the longest accepted page context, in characters.
	MaxContextLength = 5000

	// MaxAnswerLength truncates runaway answers, in characters.
	MaxAnswerLength = 10000
)

// ChatRequest is one user turn.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`

	// Context is optional text the user selected on a page.
	Context string `json:"context,omitempty"`
}

// ErrorInfo describes a failure that was turned into an apology.
type ErrorInfo struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	ErrorID   string `json:"error_id,omitempty"`
}

// Reply is the agent's answer to one turn.
type Reply struct {
	SessionID string          `json:"session_id"`
	Answer    string          `json:"answer"`
	Citations []core.Citation `json:"citations"`
	Error     *ErrorInfo      `json:"error,omitempty"`
}

// Agent runs the retrieval-augmented conversation loop.
type Agent struct {
	generator    ai.Generator
	retriever    Retriever
	sessions     storage.SessionStore
	instructions string
	maxToolCalls int
	newErrorID   func() string
	logger       *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent) error

// WithMaxToolCalls sets how many tool calls one turn may make before the
// model must answer without tools.
func WithMaxToolCalls(n int) Option {
	return func(a *Agent) error {
		if n < 1 {
			return ErrInvalidMaxToolCalls
		}
		a.maxToolCalls = n
		return nil
	}
}

// WithInstructions replaces DefaultInstructions.
func WithInstructions(instructions string) Option {
	return func(a *Agent) error {
		if strings.TrimSpace(instructions) != "" {
			a.instructions = instructions
		}
		return nil
	}
}

// WithErrorIDs sets the generator of error ids. Default is uuid.NewString.
func WithErrorIDs(fn func() string) Option {
	return func(a *Agent) error {
		if fn != nil {
			a.newErrorID = fn
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAgent creates an agent.
func NewAgent(generator ai.Generator, retriever Retriever, sessions storage.SessionStore, opts ...Option) (*Agent, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if sessions == nil {
		return nil, ErrSessionStoreRequired
	}

	a := &Agent{
		generator:    generator,
		retriever:    retriever,
		sessions:     sessions,
		instructions: DefaultInstructions,
		maxToolCalls: DefaultMaxToolCalls,
		newErrorID:   uuid.NewString,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.logger = a.logger.With("component", "agent")
	return a, nil
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidateRequest checks the length limits of a request.
func ValidateRequest(req *ChatRequest) error {
	if strings.TrimSpace(req.SessionID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, core.ErrEmptySessionID)
	}
	n := utf8.RuneCountInString(req.Message)
	if strings.TrimSpace(req.Message) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrInvalidRequest)
	}
	if n > MaxMessageLength {
		return fmt.Errorf("%w: message is %d characters, limit is %d", ErrInvalidRequest, n, MaxMessageLength)
	}
	if n := utf8.RuneCountInString(req.Context); n > MaxContextLength {
		return fmt.Errorf("%w: context is %d characters, limit is %d", ErrInvalidRequest, n, MaxContextLength)
	}
	return nil
}

// Chat runs one turn of the conversation.
//
// The user turn is stored before the first generation call, so the model
// always sees it as part of the session history. Invalid requests and
// session store failures are returned as errors; generation failures yield
// a Reply with an apology and Error set.
func (a *Agent) Chat(ctx context.Context, req ChatRequest) (*Reply, error) {
	if err := ValidateRequest(&req); err != nil {
		return nil, err
	}

	content := req.Message
	if req.Context != "" {
		content += "\n\nContext: " + req.Context
	}
	if _, err := a.sessions.AppendTurn(ctx, &core.ConversationTurn{
		SessionID: req.SessionID,
		Role:      core.RoleUser,
		Content:   content,
	}); err != nil {
		return nil, fmt.Errorf("store user turn: %w", err)
	}

	history, err := a.sessions.History(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	messages := a.buildMessages(history)

	answer, invocations, errInfo, err := a.converse(ctx, messages)
	if err != nil {
		return nil, err
	}

	reply := &Reply{SessionID: req.SessionID, Answer: answer, Citations: ExtractCitations(answer), Error: errInfo}
	if _, err := a.sessions.AppendTurn(ctx, &core.ConversationTurn{
		SessionID:       req.SessionID,
		Role:            core.RoleAssistant,
		Content:         reply.Answer,
		ToolInvocations: invocations,
		Citations:       reply.Citations,
	}); err != nil {
		return nil, fmt.Errorf("store assistant turn: %w", err)
	}

	a.logger.Info("turn complete",
		"session", req.SessionID,
		"tool_calls", len(invocations),
		"citations", len(reply.Citations),
		"failed", errInfo != nil)
	return reply, nil
}

// buildMessages replays the session as chat messages after the system prompt.
// Tool turns are not replayed; their effect is in the assistant answers.
func (a *Agent) buildMessages(history []*core.ConversationTurn) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: a.instructions})
	for _, turn := range history {
		switch turn.Role {
		case core.RoleUser:
			messages = append(messages, ai.Message{Role: ai.RoleUser, Content: turn.Content})
		case core.RoleAssistant:
			messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: turn.Content})
		}
	}
	return messages
}

// converse runs the bounded tool loop and applies the grounding guard.
func (a *Agent) converse(ctx context.Context, messages []ai.Message) (string, []core.ToolInvocation, *ErrorInfo, error) {
	tools := []ai.ToolSpec{SearchTool()}
	var invocations []core.ToolInvocation
	var outcomes []searchOutcome

	for {
		offered := tools
		if len(invocations) >= a.maxToolCalls {
			offered = nil
		}

		completion, err := a.generator.Generate(ctx, messages, offered)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", nil, nil, ctxErr
			}
			info := &ErrorInfo{
				Kind:      "service_unavailable",
				Message:   "The answer service is temporarily unavailable.",
				Retryable: true,
				ErrorID:   a.newErrorID(),
			}
			a.logger.Error("generation failed", "error_id", info.ErrorID, "err", err)
			return UnavailableMessage, invocations, info, nil
		}
		if !completion.WantsTools() || offered == nil {
			return a.ground(completion.Content, outcomes), invocations, nil, nil
		}

		messages = append(messages, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, call := range completion.ToolCalls {
			var result string
			var outcome searchOutcome
			if len(invocations) >= a.maxToolCalls {
				result = encodeResult(toolResult{Error: &toolError{
					Kind:    "tool_limit",
					Message: fmt.Sprintf("at most %d tool calls per turn; answer with what you have", a.maxToolCalls),
				}})
			} else {
				result, outcome, err = a.runTool(ctx, call)
				if err != nil {
					return "", nil, nil, err
				}
				invocations = append(invocations, core.ToolInvocation{
					ID:        call.ID,
					Name:      call.Name,
					Arguments: call.Arguments,
					Result:    result,
				})
				outcomes = append(outcomes, outcome)
			}
			messages = append(messages, ai.Message{
				Role:       ai.RoleTool,
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    result,
			})
		}
	}
}

// ground replaces the answer when no search produced results, so nothing
// the model says without sources reaches the user.
func (a *Agent) ground(answer string, outcomes []searchOutcome) string {
	searched, found, failed := 0, 0, 0
	for _, o := range outcomes {
		switch o {
		case outcomeFound:
			searched++
			found++
		case outcomeEmpty:
			searched++
		case outcomeFailed:
			searched++
			failed++
		}
	}

	switch {
	case searched > 0 && found == 0 && failed > 0:
		a.logger.Info("grounding guard: searches failed", "searches", searched, "failed", failed)
		return UnavailableMessage
	case searched > 0 && found == 0:
		a.logger.Info("grounding guard: no results", "searches", searched)
		return NotFoundMessage
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return NotFoundMessage
	}
	if utf8.RuneCountInString(answer) > MaxAnswerLength {
		answer = string([]rune(answer)[:MaxAnswerLength])
	}
	return answer
}
