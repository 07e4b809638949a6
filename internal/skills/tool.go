package skills

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentbridge/agentbridge/internal/tools"
)

// SkillTool exposes Runner.RunSkill as a registry Tool named "run_skill".
type SkillTool struct {
	runner *Runner
}

// NewSkillTool wraps runner as a tools.Tool.
func NewSkillTool(runner *Runner) *SkillTool {
	return &SkillTool{runner: runner}
}

func (t *SkillTool) Name() string { return "run_skill" }

func (t *SkillTool) Description() string {
	return "Run a workspace skill (workspace/skills/<name>) with the given arguments."
}

func (t *SkillTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Skill name, a single directory component under workspace/skills/.",
			},
			"args": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Positional arguments passed to the skill's entry point.",
			},
		},
		"required": []string{"name"},
	}
	payload, _ := json.Marshal(schema)
	return payload
}

type skillCallParams struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

func (t *SkillTool) Execute(ctx context.Context, callID string, params json.RawMessage) (*tools.Result, error) {
	var req skillCallParams
	if err := json.Unmarshal(params, &req); err != nil {
		return tools.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	result, err := t.runner.RunSkill(ctx, callID, req.Name, req.Args)
	if err != nil {
		return tools.ErrorResult(err.Error()), nil
	}
	if result.IsError {
		return tools.ErrorResult(result.Output), nil
	}
	return &tools.Result{Content: result.Output}, nil
}
