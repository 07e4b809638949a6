// Package sandbox implements the container.run tool: a shell command
// executed inside a freshly created, tightly isolated Docker container.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/internal/tools"
	"github.com/agentbridge/agentbridge/internal/tools/shell"
)

const (
	defaultTimeout = 30 * time.Second
	maxTimeout     = 300 * time.Second

	tmpfsSize    = "size=64m" // 64 MiB tmpfs at /tmp
	memoryLimit  = 512 << 20  // 512 MiB
	milliCPU     = 1000       // 1000 milli-CPU == one full core
	pidsLimit    = 256
	workspaceDir = "/workspace"
)

var nameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ContainerTool is the container.run tool. It creates one container per
// call, runs the requested command under bash -lc, and force-removes the
// container before returning (on success, failure, or timeout).
type ContainerTool struct {
	docker      *client.Client
	image       string
	workspaceHost string // optional host path bind-mounted read-only at /workspace
}

// NewContainerTool creates a container.run tool using docker, a client
// configured from the environment (DOCKER_HOST, etc.), running image for
// every invocation. workspaceHost may be empty to disable the workspace bind
// mount.
func NewContainerTool(docker *client.Client, image, workspaceHost string) *ContainerTool {
	return &ContainerTool{docker: docker, image: image, workspaceHost: workspaceHost}
}

func (t *ContainerTool) Name() string { return "container.run" }

func (t *ContainerTool) Description() string {
	return "Run a shell command in a fresh, network-isolated container with a read-only root filesystem."
}

func (t *ContainerTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute inside the container.",
			},
			"timeout_secs": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 30, max 300).",
				"minimum":     0,
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

type containerArgs struct {
	Command     string `json:"command"`
	TimeoutSecs int    `json:"timeout_secs"`
}

func (t *ContainerTool) Execute(ctx context.Context, callID string, params json.RawMessage) (*tools.Result, error) {
	var args containerArgs
	if err := json.Unmarshal(params, &args); err != nil {
		args = containerArgs{}
	}
	command := strings.TrimSpace(args.Command)
	if command == "" {
		return tools.ErrorResult("command is required"), nil
	}

	timeout := clampTimeout(args.TimeoutSecs)
	if callID == "" {
		callID = fmt.Sprintf("%d", time.Now().UnixNano())
	}
	name := "agentbridge-" + sanitizeName(callID)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := t.create(runCtx, name, command)
	if err != nil {
		return tools.ErrorResult(err.Error()), nil
	}
	// The container must not outlive the call under any outcome.
	defer func() {
		_ = t.docker.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true})
	}()

	if err := t.docker.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		return tools.ErrorResult(errs.Tool("start container", err).Error()), nil
	}

	statusCh, errCh := t.docker.ContainerWait(runCtx, id, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case <-runCtx.Done():
		return tools.ErrorResult(fmt.Sprintf("command timed out after %s", timeout)), nil
	case err := <-errCh:
		if err != nil {
			return tools.ErrorResult(errs.Tool("wait for container", err).Error()), nil
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	stdout, stderr, err := t.logs(context.Background(), id)
	if err != nil {
		return tools.ErrorResult(err.Error()), nil
	}
	return &tools.Result{Content: shell.FormatRunOutput(stdout, stderr, exitCode)}, nil
}

func (t *ContainerTool) create(ctx context.Context, name, command string) (string, error) {
	cfg := &container.Config{
		Image: t.image,
		Cmd:   []string{"bash", "-lc", command},
		Tty:   false,
	}
	binds := []string{}
	if t.workspaceHost != "" {
		binds = append(binds, t.workspaceHost+":"+workspaceDir+":ro")
	}
	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Tmpfs:          map[string]string{"/tmp": tmpfsSize},
		Binds:          binds,
		Resources: container.Resources{
			Memory:   memoryLimit,
			NanoCPUs: milliCPU * 1_000_000,
			PidsLimit: func() *int64 { v := int64(pidsLimit); return &v }(),
		},
	}

	resp, err := t.docker.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", errs.Tool("create container", err)
	}
	return resp.ID, nil
}

func (t *ContainerTool) logs(ctx context.Context, id string) (stdout, stderr string, err error) {
	reader, err := t.docker.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", errs.Tool("read container logs", err)
	}
	defer reader.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, reader); err != nil {
		return "", "", errs.Tool("demultiplex container logs", err)
	}
	return truncateRunes(outBuf.String()), truncateRunes(errBuf.String()), nil
}

func clampTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}

func sanitizeName(raw string) string {
	return nameSanitizer.ReplaceAllString(raw, "-")
}

const maxOutputRunes = 5000

func truncateRunes(s string) string {
	runes := []rune(s)
	if len(runes) <= maxOutputRunes {
		return s
	}
	return string(runes[:maxOutputRunes]) + "\n...[truncated]"
}
