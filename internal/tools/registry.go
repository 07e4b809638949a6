package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentbridge/agentbridge/internal/metrics"
)

// Limits on tool name/parameter size to prevent resource exhaustion from a
// misbehaving or adversarial LLM response.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20 // 10 MiB
)

// Registry is a thread-safe name-keyed dispatch table for tools.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// WithMetrics attaches m so every Execute call records its outcome and
// latency. m may be nil, in which case recording is a no-op.
func (r *Registry) WithMetrics(m *metrics.Metrics) *Registry {
	r.metrics = m
	return r
}

// Register adds tool, replacing any existing tool with the same name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions returns every registered tool for inclusion in an LLM request's
// tool list.
func (r *Registry) Definitions() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t)
	}
	return defs
}

// Execute runs the named tool with params under callID (the LLM's tool-call
// id, threaded through so tools can derive stable, traceable identifiers of
// their own — e.g. a sandbox container name). A missing tool, an oversized
// name, or oversized params produce an error Result rather than a Go error —
// the ReAct loop feeds these back to the LLM as a Tool message instead of
// aborting. A panic inside Execute is recovered and converted to the same
// kind of error Result rather than crashing the process.
func (r *Registry) Execute(ctx context.Context, callID, name string, params json.RawMessage) (result *Result, err error) {
	if len(name) > MaxToolNameLength {
		return ErrorResult(fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength)), nil
	}
	if len(params) > MaxToolParamsSize {
		return ErrorResult(fmt.Sprintf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize)), nil
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return ErrorResult("tool not found: " + name), nil
	}

	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ErrorResult(fmt.Sprintf("tool panicked: %v", rec))
			err = nil
			r.metrics.ObserveToolExecution(name, started, true)
		}
	}()
	result, err = tool.Execute(ctx, callID, params)
	isError := err != nil || (result != nil && result.IsError)
	r.metrics.ObserveToolExecution(name, started, isError)
	return result, err
}
