package shell

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestRunToolTimeout covers §8 S4: execute("c","system.run",{"command":"sleep 2","timeout_secs":1})
// is expected to complete in roughly 1s and return an error result.
func TestRunToolTimeout(t *testing.T) {
	tool := NewRunTool(NewManager(t.TempDir()))
	params, _ := json.Marshal(map[string]any{"command": "sleep 2", "timeout_secs": 1})

	start := time.Now()
	res, err := tool.Execute(context.Background(), "call-1", params)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected timeout to produce an error result, got %+v", res)
	}
	if elapsed > 1900*time.Millisecond {
		t.Fatalf("expected timeout around 1s, took %s", elapsed)
	}
}

func TestRunToolNonZeroExitIsNotAnError(t *testing.T) {
	tool := NewRunTool(NewManager(t.TempDir()))
	params, _ := json.Marshal(map[string]any{"command": "exit 7"})

	res, err := tool.Execute(context.Background(), "call-1", params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("non-zero exit must not be an error result: %+v", res)
	}
	if !strings.Contains(res.Content, "exit_code: 7") {
		t.Fatalf("expected exit_code footer, got %q", res.Content)
	}
}

func TestRunToolCapturesStdoutAndStderr(t *testing.T) {
	tool := NewRunTool(NewManager(t.TempDir()))
	params, _ := json.Marshal(map[string]any{"command": "echo out; echo err 1>&2"})

	res, err := tool.Execute(context.Background(), "call-1", params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(res.Content, "out") || !strings.Contains(res.Content, "err") {
		t.Fatalf("expected both stdout and stderr in output, got %q", res.Content)
	}
}

func TestRunToolRequiresCommand(t *testing.T) {
	tool := NewRunTool(NewManager(t.TempDir()))
	res, err := tool.Execute(context.Background(), "call-1", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected error result for missing command")
	}
}

func TestRunToolTruncatesLongOutput(t *testing.T) {
	tool := NewRunTool(NewManager(t.TempDir()))
	// Print well beyond maxOutputRunes so truncation must engage.
	params, _ := json.Marshal(map[string]any{"command": "yes x | head -c 100000"})

	res, err := tool.Execute(context.Background(), "call-1", params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(res.Content, truncationSuffix) {
		t.Fatalf("expected truncation marker in long output")
	}
}

func TestRunToolBackgroundAndProcessLifecycle(t *testing.T) {
	manager := NewManager(t.TempDir())
	runTool := NewRunTool(manager)
	processTool := NewProcessTool(manager)

	params, _ := json.Marshal(map[string]any{"command": "sleep 0.2", "background": true})
	res, err := runTool.Execute(context.Background(), "call-1", params)
	if err != nil {
		t.Fatalf("execute background: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error starting background process: %+v", res)
	}
	var started struct {
		ProcessID string `json:"process_id"`
	}
	if err := json.Unmarshal([]byte(res.Content), &started); err != nil {
		t.Fatalf("parse background result: %v", err)
	}
	if started.ProcessID == "" {
		t.Fatalf("expected a process id")
	}

	listParams, _ := json.Marshal(map[string]any{"action": "list"})
	listRes, err := processTool.Execute(context.Background(), "call-1", listParams)
	if err != nil || listRes.IsError {
		t.Fatalf("list processes: res=%+v err=%v", listRes, err)
	}

	time.Sleep(400 * time.Millisecond)
	statusParams, _ := json.Marshal(map[string]any{"action": "status", "process_id": started.ProcessID})
	statusRes, err := processTool.Execute(context.Background(), "call-1", statusParams)
	if err != nil || statusRes.IsError {
		t.Fatalf("status: res=%+v err=%v", statusRes, err)
	}
	if !strings.Contains(statusRes.Content, "exited") {
		t.Fatalf("expected process to have exited: %s", statusRes.Content)
	}

	removeParams, _ := json.Marshal(map[string]any{"action": "remove", "process_id": started.ProcessID})
	removeRes, err := processTool.Execute(context.Background(), "call-1", removeParams)
	if err != nil || removeRes.IsError {
		t.Fatalf("remove: res=%+v err=%v", removeRes, err)
	}
}
