package anthropic

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/pkg/models"
)

func TestToolInputSubstitutesEmptyObjectOnMalformedJSON(t *testing.T) {
	got := toolInput(json.RawMessage(`not json`))
	if len(got) != 0 {
		t.Fatalf("expected empty map fallback, got %#v", got)
	}
}

func TestToolInputPassesThroughValidJSON(t *testing.T) {
	got := toolInput(json.RawMessage(`{"path":"a.go"}`))
	if got["path"] != "a.go" {
		t.Fatalf("expected parsed field preserved, got %#v", got)
	}
}

func TestConvertMessagesPullsSystemRoleOutSeparately(t *testing.T) {
	var system []anthropic.TextBlockParam
	messages, err := convertMessages([]llm.ChatMessage{
		{Role: models.RoleSystem, Content: "be helpful"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "c1", Name: "system.run", Arguments: json.RawMessage(`{}`)}}},
		{Role: models.RoleTool, ToolCallID: "c1", Content: "ok"},
	}, &system)
	if err != nil {
		t.Fatalf("convert messages: %v", err)
	}
	if len(system) != 1 || system[0].Text != "be helpful" {
		t.Fatalf("expected system content extracted, got %#v", system)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 non-system messages, got %d", len(messages))
	}
}

func TestClassifyWrapsAsLLMKind(t *testing.T) {
	wrapped := classify(errors.New("boom"), "claude-sonnet-4-20250514")
	if errs.KindOf(wrapped) != errs.KindLLM {
		t.Fatalf("expected LLM error kind, got %s", errs.KindOf(wrapped))
	}
}
