// Package screenshot implements the screen.capture tool: a single PNG
// snapshot of the host display, captured by shelling out to the platform's
// native screenshot utility.
package screenshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"os/exec"
	"runtime"

	"github.com/agentbridge/agentbridge/internal/tools"
)

// Tool is the screen.capture tool.
type Tool struct {
	display string
}

// NewTool creates a screen.capture tool. display labels the captured output
// in the response document (e.g. "0" or ":0"); it does not select among
// multiple displays.
func NewTool(display string) *Tool {
	if display == "" {
		display = "0"
	}
	return &Tool{display: display}
}

func (t *Tool) Name() string { return "screen.capture" }

func (t *Tool) Description() string {
	return "Capture a single PNG screenshot of the host display."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (t *Tool) Execute(ctx context.Context, callID string, params json.RawMessage) (*tools.Result, error) {
	png, err := capture(ctx)
	if err != nil {
		return tools.ErrorResult(err.Error()), nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	width, height := 0, 0
	if err == nil {
		width, height = cfg.Width, cfg.Height
	}

	doc := map[string]any{
		"mime":       "image/png",
		"display":    t.display,
		"width":      width,
		"height":     height,
		"size_bytes": len(png),
		"data_b64":   base64.StdEncoding.EncodeToString(png),
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("encode capture result: %v", err)), nil
	}
	return &tools.Result{Content: string(payload)}, nil
}

// capture shells out to the platform's native screenshot tool and returns
// the raw PNG bytes.
func capture(ctx context.Context) ([]byte, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "screencapture", "-x", "-t", "png", "-")
	case "linux":
		cmd = exec.CommandContext(ctx, "import", "-window", "root", "png:-")
	default:
		return nil, fmt.Errorf("screen capture is not available on %s", runtime.GOOS)
	}

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("screen capture produced no output")
	}
	return output, nil
}
