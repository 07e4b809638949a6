package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentbridge/agentbridge/internal/tools"
	"github.com/agentbridge/agentbridge/internal/tools/security"
)

// RunTool is the system.run tool.
type RunTool struct {
	manager *Manager
}

// NewRunTool creates a system.run tool rooted at the manager's workspace.
func NewRunTool(manager *Manager) *RunTool {
	return &RunTool{manager: manager}
}

func (t *RunTool) Name() string { return "system.run" }

func (t *RunTool) Description() string {
	return "Run a shell command under bash -lc and return its stdout, stderr, and exit code."
}

func (t *RunTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"working_dir": map[string]any{
				"type":        "string",
				"description": "Working directory, relative to the workspace root.",
			},
			"timeout_secs": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 30, clamped to 300).",
				"minimum":     0,
			},
			"background": map[string]any{
				"type":        "boolean",
				"description": "Run in the background and return a process id instead of waiting.",
			},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type runArgs struct {
	Command     string `json:"command"`
	WorkingDir  string `json:"working_dir"`
	TimeoutSecs int    `json:"timeout_secs"`
	Background  bool   `json:"background"`
}

func (t *RunTool) Execute(ctx context.Context, callID string, params json.RawMessage) (*tools.Result, error) {
	var args runArgs
	if err := json.Unmarshal(params, &args); err != nil {
		// Tolerate malformed arguments rather than rejecting the call.
		args = runArgs{}
	}
	command := strings.TrimSpace(args.Command)
	if command == "" {
		return tools.ErrorResult("command is required"), nil
	}

	timeout := ClampTimeout(args.TimeoutSecs)
	analysis := security.AnalyzeCommandQuoteAware(command)

	if args.Background {
		id, err := t.manager.StartBackground(ctx, command, args.WorkingDir, timeout)
		if err != nil {
			return tools.ErrorResult(err.Error()), nil
		}
		payload, _ := json.Marshal(map[string]string{"status": "running", "process_id": id})
		return &tools.Result{Content: string(payload)}, nil
	}

	result, err := t.manager.Run(ctx, command, args.WorkingDir, timeout)
	if err != nil {
		return tools.ErrorResult(err.Error()), nil
	}
	if result.TimedOut {
		return tools.ErrorResult(fmt.Sprintf("command timed out after %s", timeout)), nil
	}
	output := FormatRunOutput(result.Stdout, result.Stderr, result.ExitCode)
	if !analysis.IsSafe {
		output = fmt.Sprintf("warning: command used shell metacharacters (%s)\n%s", analysis.Reason, output)
	}
	return &tools.Result{Content: output}, nil
}

// FormatRunOutput concatenates captured stdout/stderr with an exit_code
// footer. The container tool reuses this so both tools share one output
// contract.
func FormatRunOutput(stdout, stderr string, exitCode int) string {
	var b strings.Builder
	b.WriteString(stdout)
	if stderr != "" {
		b.WriteString("\n--- stderr ---\n")
		b.WriteString(stderr)
	}
	fmt.Fprintf(&b, "\nexit_code: %d", exitCode)
	return b.String()
}

// ProcessTool is the system.process tool: list/status/log/write/kill/remove
// over background processes started by RunTool.
type ProcessTool struct {
	manager *Manager
}

// NewProcessTool creates a system.process tool backed by manager.
func NewProcessTool(manager *Manager) *ProcessTool {
	return &ProcessTool{manager: manager}
}

func (t *ProcessTool) Name() string { return "system.process" }

func (t *ProcessTool) Description() string {
	return "Inspect or control background processes started by system.run(background=true)."
}

func (t *ProcessTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "One of: list, status, log, write, kill, remove.",
			},
			"process_id": map[string]any{
				"type":        "string",
				"description": "Process id, required for all actions except list.",
			},
			"input": map[string]any{
				"type":        "string",
				"description": "Text to write to stdin, required for the write action.",
			},
		},
		"required": []string{"action"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

type processArgs struct {
	Action    string `json:"action"`
	ProcessID string `json:"process_id"`
	Input     string `json:"input"`
}

func (t *ProcessTool) Execute(ctx context.Context, callID string, params json.RawMessage) (*tools.Result, error) {
	var args processArgs
	if err := json.Unmarshal(params, &args); err != nil {
		args = processArgs{}
	}
	action := strings.ToLower(strings.TrimSpace(args.Action))

	if action == "list" {
		payload, _ := json.Marshal(map[string]any{"processes": t.manager.List()})
		return &tools.Result{Content: string(payload)}, nil
	}

	if strings.TrimSpace(args.ProcessID) == "" {
		return tools.ErrorResult("process_id is required"), nil
	}
	proc, ok := t.manager.Get(args.ProcessID)
	if !ok {
		return tools.ErrorResult("process not found: " + args.ProcessID), nil
	}

	switch action {
	case "status":
		payload, _ := json.Marshal(proc.info())
		return &tools.Result{Content: string(payload)}, nil
	case "log":
		stdout, stderr := proc.Log()
		payload, _ := json.Marshal(map[string]string{"stdout": stdout, "stderr": stderr, "status": proc.status()})
		return &tools.Result{Content: string(payload)}, nil
	case "write":
		if args.Input == "" {
			return tools.ErrorResult("input is required"), nil
		}
		if err := proc.Write(args.Input); err != nil {
			return tools.ErrorResult(err.Error()), nil
		}
		return &tools.Result{Content: `{"status":"written"}`}, nil
	case "kill":
		if err := proc.Kill(); err != nil {
			return tools.ErrorResult(err.Error()), nil
		}
		return &tools.Result{Content: `{"status":"killed"}`}, nil
	case "remove":
		if proc.status() == "running" {
			return tools.ErrorResult("process still running"), nil
		}
		if !t.manager.Remove(args.ProcessID) {
			return tools.ErrorResult("remove failed"), nil
		}
		return &tools.Result{Content: `{"status":"removed"}`}, nil
	default:
		return tools.ErrorResult("unsupported action: " + action), nil
	}
}
