package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object"}`)
}
func (echoTool) Execute(ctx context.Context, callID string, params json.RawMessage) (*Result, error) {
	return &Result{Content: string(params)}, nil
}

func TestRegistryExecuteDispatchesToRegisteredTool(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{})

	res, err := reg.Execute(context.Background(), "call-1", "echo", json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError || res.Content != `{"a":1}` {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRegistryExecuteUnknownToolReturnsErrorResult(t *testing.T) {
	reg := NewRegistry()
	res, err := reg.Execute(context.Background(), "call-1", "missing", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("expected no go error, got %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error result for unknown tool")
	}
}

func TestRegistryExecuteRejectsOversizedName(t *testing.T) {
	reg := NewRegistry()
	longName := strings.Repeat("a", MaxToolNameLength+1)
	res, err := reg.Execute(context.Background(), "call-1", longName, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("expected no go error, got %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error result for oversized tool name")
	}
}

func TestRegistryDefinitionsIncludesRegisteredTools(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool{})
	defs := reg.Definitions()
	if len(defs) != 1 || defs[0].Name() != "echo" {
		t.Fatalf("unexpected definitions: %+v", defs)
	}
}
