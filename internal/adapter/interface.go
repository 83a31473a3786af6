// Package adapter abstracts the large-language-model backend behind a
// small contract. Backends report availability and token usage; the
// registry is constructed at program start and injected into consumers.
package adapter

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem is a system instruction message.
	RoleSystem Role = "system"
	// RoleUser is an operator or orchestrator message.
	RoleUser Role = "user"
	// RoleAssistant is a model response message.
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response is the outcome of one adapter call.
type Response struct {
	// Content is the generated text.
	Content string `json:"content"`
	// TokensUsed is the total token count reported by the backend.
	TokensUsed int64 `json:"tokens_used"`
	// ToolCalls holds tool invocations requested by the model, if any.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Tool describes one tool offered to the model.
type Tool struct {
	// Name is the tool identifier.
	Name string `json:"name"`
	// Description explains when the model should call the tool.
	Description string `json:"description"`
	// InputSchema is the JSON schema of the tool's parameters.
	InputSchema map[string]interface{} `json:"input_schema"`
	// Required lists mandatory parameter names.
	Required []string `json:"required,omitempty"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	// Name is the invoked tool.
	Name string `json:"name"`
	// Input is the raw JSON arguments.
	Input []byte `json:"input"`
}

// Adapter is the contract every LLM backend implements.
type Adapter interface {
	// Name returns the backend identifier.
	Name() string
	// Generate produces a completion for a single prompt.
	Generate(ctx context.Context, prompt string) (*Response, error)
	// Chat produces a completion for a conversation.
	Chat(ctx context.Context, messages []Message) (*Response, error)
	// Available reports whether the backend is reachable.
	Available(ctx context.Context) bool
}

// ToolCapable is implemented by backends that support tool calling.
type ToolCapable interface {
	// ChatWithTools produces a completion that may request tool calls.
	ChatWithTools(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}
