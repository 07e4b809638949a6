package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAgentMessageRoundTrip(t *testing.T) {
	msg := AgentMessage{
		ID:        "msg-1",
		SessionID: SessionID("telegram:123"),
		Role:      RoleAssistant,
		Content:   "",
		ToolCalls: []ToolCall{
			{ID: "call-1", Name: "system.run", Arguments: json.RawMessage(`{"command":"ls"}`)},
		},
		CreatedAt: time.Unix(0, 0).UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got AgentMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != msg.ID || got.Role != msg.Role {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, msg)
	}
	if len(got.ToolCalls) != 1 || got.ToolCalls[0].Name != "system.run" {
		t.Fatalf("tool calls not preserved: %+v", got.ToolCalls)
	}
}

func TestAgentMessageToolRoleFields(t *testing.T) {
	msg := AgentMessage{
		ID:         "msg-2",
		SessionID:  SessionID("ws:abc"),
		Role:       RoleTool,
		Content:    `{"exit_code":0}`,
		ToolCallID: "call-1",
		ToolName:   "system.run",
		CreatedAt:  time.Now(),
	}
	if msg.ToolCallID == "" || msg.ToolName == "" {
		t.Fatalf("tool message missing linkage fields: %+v", msg)
	}
}

func TestSessionPreviewEmbedsSession(t *testing.T) {
	now := time.Now()
	sp := SessionPreview{
		Session: Session{
			ID:        SessionID("s1"),
			ChannelID: ChannelID("terminal:local"),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Preview: "hello there",
	}
	if sp.ID != "s1" || sp.Preview != "hello there" {
		t.Fatalf("unexpected preview: %+v", sp)
	}
}

func TestToolResultErrorFlag(t *testing.T) {
	r := ToolResult{CallID: "c1", ToolName: "system.run", Output: "boom", IsError: true}
	if !r.IsError {
		t.Fatalf("expected IsError true")
	}
}
