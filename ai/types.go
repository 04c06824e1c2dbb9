package ai

// EmbedMode selects how a text is embedded.
// Documents and queries may map to different vectors for the same text.
type EmbedMode int

const (
	// ModeDocument embeds content destined for the index.
	ModeDocument EmbedMode = iota + 1
	// ModeQuery embeds a search query.
	ModeQuery
)

func (m EmbedMode) String() string {
	switch m {
	case ModeDocument:
		return "document"
	case ModeQuery:
		return "query"
	}
	return "unknown"
}

// Valid reports whether m is one of the defined modes.
func (m EmbedMode) Valid() bool {
	return m == ModeDocument || m == ModeQuery
}

// MessageRole is the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one entry of the conversation sent to a Generator.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCalls are set on assistant messages that requested tools.
	ToolCalls []ToolCall

	// ToolCallID and Name are set on tool messages.
	ToolCallID string
	Name       string
}

// ToolSpec describes a callable tool with a JSON schema for its arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Completion is the result of one Generate call.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// WantsTools reports whether the model asked for at least one tool call.
func (c *Completion) WantsTools() bool {
	return c != nil && len(c.ToolCalls) > 0
}
