package llm

import (
	"context"
	"encoding/json"
)

// Message roles on the Anthropic wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock is a single block within a message: text, a tool invocation
// requested by the model, or a tool result echoed back to it.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// Message is one conversational turn.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage builds a plain text message for the given role.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ToolResultMessage builds the synthetic user turn carrying tool results.
func ToolResultMessage(results []ContentBlock) Message {
	return Message{Role: RoleUser, Content: results}
}

// ToolDef declares a tool the model may invoke.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Turn is the terminal state of one generation call: the full streamed text,
// the stop reason, any requested tool calls, and the raw assistant content
// needed to extend the conversation history.
type Turn struct {
	Text         string
	StopReason   string
	ToolCalls    []ToolCall
	Content      []ContentBlock
	InputTokens  int64
	OutputTokens int64
}

// Request describes one generation call.
type Request struct {
	Model    string // empty uses the provider default
	System   string
	Messages []Message
	Tools    []ToolDef
	Thinking bool // request adaptive thinking (first iteration of tier-1 turns)
}

// Provider is the generative backend contract. Implementations stream text
// fragments through onFragment in generation order and return the terminal
// turn state. onFragment may be nil for one-shot calls.
type Provider interface {
	Generate(ctx context.Context, req Request, onFragment func(string)) (Turn, error)
}
