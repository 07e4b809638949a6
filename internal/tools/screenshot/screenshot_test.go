package screenshot

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
)

func TestExecuteReturnsErrorResultOnUnsupportedPlatform(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "linux" {
		t.Skip("platform has a capture path; unsupported-OS path not reachable here")
	}
	tool := NewTool("0")
	res, err := tool.Execute(context.Background(), "call-1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error result on unsupported platform")
	}
}

func TestNewToolDefaultsDisplay(t *testing.T) {
	tool := NewTool("")
	if tool.display != "0" {
		t.Fatalf("expected default display '0', got %q", tool.display)
	}
}
