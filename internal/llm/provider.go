// Package llm defines the neutral chat interface the agent runtime drives,
// independent of any specific model vendor. Concrete adapters live in
// sibling packages (anthropic, openai) and translate to/from each vendor's
// wire format.
package llm

import (
	"context"
	"encoding/json"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// ToolDefinition describes one callable tool to a provider: its name,
// natural-language description, and JSON Schema parameters.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ChatMessage preserves role, content, and tool-call metadata across a
// provider call; it mirrors models.AgentMessage without the persistence
// fields (id, session id, created at).
type ChatMessage struct {
	Role       models.Role      `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
	ToolCalls  []models.ToolCall `json:"tool_calls,omitempty"`
}

// ChatRequest is one completion request to a provider.
type ChatRequest struct {
	Messages []ChatMessage
	Tools    []ToolDefinition
	Model    string
}

// Usage reports token consumption for a single provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is the provider's reply: exactly one of Content (a final
// text answer) or ToolCalls (a request to invoke tools) is populated.
type ChatResponse struct {
	Content   string
	ToolCalls []models.ToolCall
	Usage     Usage
}

// IsToolCalls reports whether the response asks for tool execution rather
// than carrying a final text answer.
func (r ChatResponse) IsToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Provider is the narrow polymorphic interface every LLM backend
// implements. Implementations must be safe for concurrent use.
type Provider interface {
	// Chat sends req and returns the provider's completion.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Name returns a short identifier for the provider.
	Name() string
}
