// Package tools defines the tool contract and a name-keyed registry that
// dispatches calls to shell, container, screen-capture, and WASM skill
// tools on the LLM's behalf.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is the capability set every executable tool implements: a name and
// description for the LLM's function-calling surface, a JSON Schema for its
// parameters, and an execution entry point.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, callID string, params json.RawMessage) (*Result, error)
}

// Result is a tool's output. Errors are not propagated as Go errors from
// Execute — they are captured here with IsError set so the caller can feed
// them back to the LLM as a Tool message rather than aborting the ReAct loop.
type Result struct {
	Content string
	IsError bool
}

// ErrorResult builds a Result with IsError set, formatting message as plain
// text content.
func ErrorResult(message string) *Result {
	return &Result{Content: message, IsError: true}
}
