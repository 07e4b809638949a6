package models

import "encoding/json"

// ProgressKind identifies the variant carried by a ProgressEvent.
type ProgressKind string

const (
	ProgressLlmThinking      ProgressKind = "llm_thinking"
	ProgressToolCallStarted  ProgressKind = "tool_call_started"
	ProgressToolCallFinished ProgressKind = "tool_call_finished"
)

// ProgressEvent is an observational notification emitted by the agent
// runtime during a single Process call. Kind decides which of the other
// fields are meaningful (see each field's comment); progress is strictly
// observational and may be
// consumed by zero, one, or many observers without affecting correctness.
type ProgressEvent struct {
	Kind ProgressKind `json:"kind"`

	// Round is set for ProgressLlmThinking.
	Round int `json:"round,omitempty"`

	// CallID/ToolName/Args are set for ProgressToolCallStarted.
	CallID   string          `json:"call_id,omitempty"`
	ToolName string          `json:"tool_name,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`

	// Output/IsError are additionally set for ProgressToolCallFinished.
	Output  string `json:"output,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// ThinkingEvent builds a ProgressLlmThinking event for the given round.
func ThinkingEvent(round int) ProgressEvent {
	return ProgressEvent{Kind: ProgressLlmThinking, Round: round}
}

// ToolStartedEvent builds a ProgressToolCallStarted event.
func ToolStartedEvent(callID, toolName string, args json.RawMessage) ProgressEvent {
	return ProgressEvent{Kind: ProgressToolCallStarted, CallID: callID, ToolName: toolName, Args: args}
}

// ToolFinishedEvent builds a ProgressToolCallFinished event.
func ToolFinishedEvent(callID, toolName, output string, isError bool) ProgressEvent {
	return ProgressEvent{Kind: ProgressToolCallFinished, CallID: callID, ToolName: toolName, Output: output, IsError: isError}
}
