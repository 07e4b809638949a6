package skills

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSkillToolExecutesSubprocessSkill(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires bash")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "echo", "SKILL.md"), "---\ndescription: echoes\n---\n")
	scriptPath := filepath.Join(root, "skills", "echo", "run.sh")
	writeFile(t, scriptPath, "#!/bin/bash\necho \"$1\"\n")
	if err := os.Chmod(scriptPath, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	tool := NewSkillTool(NewRunner(root, nil))
	params, _ := json.Marshal(map[string]any{"name": "echo", "args": []string{"hi"}})

	result, err := tool.Execute(context.Background(), "call-1", params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %+v", result)
	}
	if result.Content != "hi\n" {
		t.Fatalf("unexpected content: %q", result.Content)
	}
}

func TestSkillToolInvalidParamsReturnsErrorResult(t *testing.T) {
	tool := NewSkillTool(NewRunner(t.TempDir(), nil))
	result, err := tool.Execute(context.Background(), "call-1", json.RawMessage(`not json`))
	if err != nil {
		t.Fatalf("Execute returned go error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for invalid params")
	}
}
