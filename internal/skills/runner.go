package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// WasmRunner executes a wasm-mode skill, matching skillrt.Runtime's Run
// signature so the real sandbox can be passed in without this package
// importing it directly (keeps the subprocess-only path dependency-free).
type WasmRunner interface {
	Run(ctx context.Context, name string, call models.ToolCall, timeout time.Duration) (models.ToolResult, error)
}

const subprocessTimeout = 60 * time.Second

// Runner dispatches run_skill invocations to either a subprocess or, for
// wasm-mode skills, the configured WasmRunner.
type Runner struct {
	loader *Loader
	wasm   WasmRunner
}

// NewRunner creates a Runner rooted at workspaceRoot. wasm may be nil; a
// wasm-mode skill then fails with a clear error instead of panicking.
func NewRunner(workspaceRoot string, wasm WasmRunner) *Runner {
	return &Runner{loader: NewLoader(workspaceRoot), wasm: wasm}
}

// RunSkill executes the named skill with args, dispatching on its declared
// mode. callID is the LLM's tool-call id, threaded into the wasm-mode
// ToolCall so guest invocations carry the same id the registry recorded.
func (r *Runner) RunSkill(ctx context.Context, callID, name string, args []string) (models.ToolResult, error) {
	if err := validateSkillName(name); err != nil {
		return models.ToolResult{}, err
	}

	meta, err := r.loader.LoadSkillMetadata(name)
	if err != nil {
		return models.ToolResult{}, err
	}

	if meta.EffectiveMode() == ModeWasm {
		if r.wasm == nil {
			return models.ToolResult{}, errs.New(errs.KindTool, "wasm runtime unavailable", nil).With("skill", name)
		}
		payload, err := json.Marshal(args)
		if err != nil {
			return models.ToolResult{}, err
		}
		call := models.ToolCall{ID: callID, Name: name, Arguments: payload}
		return r.wasm.Run(ctx, name, call, subprocessTimeout)
	}

	return r.runSubprocess(ctx, name, args)
}

// runSubprocess probes run.sh, main.py, main.sh in that order inside the
// skill's directory and executes the first one found.
func (r *Runner) runSubprocess(ctx context.Context, name string, args []string) (models.ToolResult, error) {
	skillDir := filepath.Join(r.loader.workspaceRoot, "skills", name)

	candidates := []struct {
		file string
		run  func(script string) (*exec.Cmd, error)
	}{
		{"run.sh", func(script string) (*exec.Cmd, error) { return shellCommand(ctx, "bash", script, args) }},
		{"main.py", func(script string) (*exec.Cmd, error) { return pythonCommand(ctx, script, args) }},
		{"main.sh", func(script string) (*exec.Cmd, error) { return shellCommand(ctx, "bash", script, args) }},
	}

	for _, candidate := range candidates {
		scriptPath := filepath.Join(skillDir, candidate.file)
		if _, err := os.Stat(scriptPath); err != nil {
			continue
		}
		cmd, err := candidate.run(scriptPath)
		if err != nil {
			return models.ToolResult{}, err
		}
		cmd.Dir = skillDir
		return execute(cmd, name)
	}

	return models.ToolResult{}, errs.New(errs.KindTool, "no entry point found (run.sh, main.py, main.sh)", nil).With("skill", name)
}

func shellCommand(ctx context.Context, shell, script string, args []string) (*exec.Cmd, error) {
	return exec.CommandContext(ctx, shell, append([]string{script}, args...)...), nil
}

func pythonCommand(ctx context.Context, script string, args []string) (*exec.Cmd, error) {
	interpreter := "python"
	if _, err := exec.LookPath(interpreter); err != nil {
		interpreter = "python3"
		if _, err := exec.LookPath(interpreter); err != nil {
			return nil, errs.New(errs.KindTool, "neither python nor python3 found on PATH", err)
		}
	}
	return exec.CommandContext(ctx, interpreter, append([]string{script}, args...)...), nil
}

func execute(cmd *exec.Cmd, name string) (models.ToolResult, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n" + stderr.String()
	}

	if err != nil {
		return models.ToolResult{ToolName: name, Output: fmt.Sprintf("%s\n%v", output, err), IsError: true}, nil
	}
	return models.ToolResult{ToolName: name, Output: output}, nil
}
