package skills

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

func TestRunSkillRejectsInvalidName(t *testing.T) {
	runner := NewRunner(t.TempDir(), nil)
	if _, err := runner.RunSkill(context.Background(), "call-1", "../escape", nil); err == nil {
		t.Fatal("expected error for traversing skill name")
	}
}

func TestRunSkillExecutesShellEntryPoint(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires bash")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "greet", "SKILL.md"), "---\ndescription: greets\n---\nbody")
	scriptPath := filepath.Join(root, "skills", "greet", "run.sh")
	writeFile(t, scriptPath, "#!/bin/bash\necho hello \"$1\"\n")
	if err := os.Chmod(scriptPath, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	runner := NewRunner(root, nil)
	result, err := runner.RunSkill(context.Background(), "call-1", "greet", []string{"world"})
	if err != nil {
		t.Fatalf("RunSkill: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if result.Output != "hello world\n" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestRunSkillMissingEntryPointErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "empty", "SKILL.md"), "---\ndescription: nothing\n---\n")

	runner := NewRunner(root, nil)
	if _, err := runner.RunSkill(context.Background(), "call-1", "empty", nil); err == nil {
		t.Fatal("expected error for missing entry point")
	}
}

type stubWasmRunner struct {
	called bool
}

func (s *stubWasmRunner) Run(ctx context.Context, name string, call models.ToolCall, timeout time.Duration) (models.ToolResult, error) {
	s.called = true
	return models.ToolResult{ToolName: name, Output: "wasm ok"}, nil
}

func TestRunSkillDispatchesWasmMode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "sandboxed", "SKILL.md"), "---\ndescription: sandboxed\nmode: wasm\n---\n")

	wasm := &stubWasmRunner{}
	runner := NewRunner(root, wasm)
	result, err := runner.RunSkill(context.Background(), "call-1", "sandboxed", []string{"arg"})
	if err != nil {
		t.Fatalf("RunSkill: %v", err)
	}
	if !wasm.called {
		t.Fatal("expected wasm runner to be invoked")
	}
	if result.Output != "wasm ok" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestRunSkillWasmModeWithoutRunnerErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "sandboxed", "SKILL.md"), "---\ndescription: sandboxed\nmode: wasm\n---\n")

	runner := NewRunner(root, nil)
	if _, err := runner.RunSkill(context.Background(), "call-1", "sandboxed", nil); err == nil {
		t.Fatal("expected error when wasm runner is unavailable")
	}
}
