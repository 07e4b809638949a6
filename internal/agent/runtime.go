// Package agent implements the ReAct loop: the bounded iteration that
// interleaves LLM calls and tool executions, enforces approval policy,
// streams progress events, and turns one inbound ChannelEvent into one
// outbound AgentResponse.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentbridge/agentbridge/internal/approval"
	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/internal/llm"
	"github.com/agentbridge/agentbridge/internal/memory"
	"github.com/agentbridge/agentbridge/internal/metrics"
	"github.com/agentbridge/agentbridge/internal/tools"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// DefaultMaxRounds is how many LLM round-trips a single Process call may
// make before giving up.
const DefaultMaxRounds = 10

// ErrMaxRoundsExceeded is returned when the loop exhausts MaxRounds without
// the provider returning a final text answer.
var ErrMaxRoundsExceeded = fmt.Errorf("max tool rounds exceeded")

// Config tunes the runtime's bounds. Zero values fall back to defaults.
type Config struct {
	// MaxRounds bounds LLM round-trips per Process call. Default 10.
	MaxRounds int

	// Model is passed to the provider on every chat call.
	Model string

	// SystemPrompt seeds the conversation (typically the skill loader's
	// concatenated skill context).
	SystemPrompt string
}

func (c Config) maxRounds() int {
	if c.MaxRounds <= 0 {
		return DefaultMaxRounds
	}
	return c.MaxRounds
}

// sessionLock stripes a mutex per session id so concurrent Process calls
// for different sessions never block one another, while calls for the same
// session serialize.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// Runtime drives the ReAct loop against a provider, tool registry, approval
// handler, and memory store.
type Runtime struct {
	provider llm.Provider
	registry *tools.Registry
	store    memory.Store
	approver approval.Handler
	cfg      Config

	sessionLocksMu sync.Mutex
	sessionLocks   map[models.SessionID]*sessionLock

	metrics *metrics.Metrics
}

// WithMetrics attaches m so every provider Chat call records its outcome and
// latency. m may be nil, in which case recording is a no-op.
func (r *Runtime) WithMetrics(m *metrics.Metrics) *Runtime {
	r.metrics = m
	return r
}

// New creates a Runtime. approver may be approval.AutoApprove{} for
// unattended deployments.
func New(provider llm.Provider, registry *tools.Registry, store memory.Store, approver approval.Handler, cfg Config) *Runtime {
	return &Runtime{
		provider:     provider,
		registry:     registry,
		store:        store,
		approver:     approver,
		cfg:          cfg,
		sessionLocks: make(map[models.SessionID]*sessionLock),
	}
}

func (r *Runtime) lockSession(id models.SessionID) func() {
	if id == "" {
		return func() {}
	}
	r.sessionLocksMu.Lock()
	lock, ok := r.sessionLocks[id]
	if !ok {
		lock = &sessionLock{}
		r.sessionLocks[id] = lock
	}
	lock.refs++
	r.sessionLocksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		r.sessionLocksMu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(r.sessionLocks, id)
		}
		r.sessionLocksMu.Unlock()
	}
}

// Process runs one ReAct loop for event, streaming progress onto sink (a
// bounded channel — the runtime blocks on send rather than drop events) and
// returning the final AgentResponse. Provider errors abort the loop and
// surface as an error AgentResponse; tool errors do not abort — they are
// fed back to the model as Tool messages.
func (r *Runtime) Process(ctx context.Context, event models.ChannelEvent, sink chan<- models.ProgressEvent) (models.AgentResponse, error) {
	unlock := r.lockSession(event.SessionID)
	defer unlock()

	if _, err := r.store.EnsureSession(ctx, event.SessionID, event.ChannelID); err != nil {
		wrapped := errs.Database("ensure session", err)
		return errorResponse(event, wrapped), wrapped
	}

	userMsg := models.AgentMessage{
		ID:        uuid.NewString(),
		SessionID: event.SessionID,
		Role:      models.RoleUser,
		Content:   event.UserMessage,
	}
	if err := r.store.SaveMessage(ctx, userMsg); err != nil {
		return errorResponse(event, err), err
	}

	history, err := r.store.LoadSession(ctx, event.SessionID)
	if err != nil {
		return errorResponse(event, err), err
	}

	messages := buildInitialMessages(r.cfg.SystemPrompt, history)
	approved := make(map[string]struct{})
	var usage llm.Usage

	for round := 0; round < r.cfg.maxRounds(); round++ {
		emit(sink, models.ThinkingEvent(round))

		started := time.Now()
		resp, err := r.provider.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    toolDefinitions(r.registry),
			Model:    r.cfg.Model,
		})
		r.metrics.ObserveLLMRequest(r.provider.Name(), started, err)
		if err != nil {
			wrapped := errs.LLM("provider chat failed", err)
			return errorResponse(event, wrapped), wrapped
		}
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens

		if !resp.IsToolCalls() {
			assistantMsg := models.AgentMessage{
				ID:        uuid.NewString(),
				SessionID: event.SessionID,
				Role:      models.RoleAssistant,
				Content:   resp.Content,
			}
			if err := r.store.SaveMessage(ctx, assistantMsg); err != nil {
				return errorResponse(event, err), err
			}
			return models.AgentResponse{
				ChannelID: event.ChannelID,
				SessionID: event.SessionID,
				Content:   resp.Content,
			}, nil
		}

		assistantMsg := models.AgentMessage{
			ID:        uuid.NewString(),
			SessionID: event.SessionID,
			Role:      models.RoleAssistant,
			ToolCalls: resp.ToolCalls,
		}
		if err := r.store.SaveMessage(ctx, assistantMsg); err != nil {
			return errorResponse(event, err), err
		}
		messages = append(messages, llm.ChatMessage{Role: models.RoleAssistant, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			result := r.executeCall(ctx, event.SessionID, call, approved, sink)

			toolMsg := models.AgentMessage{
				ID:         uuid.NewString(),
				SessionID:  event.SessionID,
				Role:       models.RoleTool,
				Content:    result.Output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			}
			if err := r.store.SaveMessage(ctx, toolMsg); err != nil {
				return errorResponse(event, err), err
			}
			messages = append(messages, llm.ChatMessage{
				Role:       models.RoleTool,
				Content:    result.Output,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	wrapped := errs.Gateway("agent loop", ErrMaxRoundsExceeded).With("session_id", string(event.SessionID))
	return errorResponse(event, wrapped), wrapped
}

// executeCall enforces the approval gate (consulting the session-scoped
// allowlist first) and dispatches to the tool registry, emitting
// ToolCallStarted/ToolCallFinished around the execution regardless of
// outcome.
func (r *Runtime) executeCall(ctx context.Context, sessionID models.SessionID, call models.ToolCall, approved map[string]struct{}, sink chan<- models.ProgressEvent) models.ToolResult {
	if _, ok := approved[call.Name]; !ok {
		decision, err := r.approver.RequestApproval(ctx, models.ToolApprovalRequest{
			SessionID: sessionID,
			CallID:    call.ID,
			ToolName:  call.Name,
			Args:      string(call.Arguments),
		})
		if err != nil {
			return models.ToolResult{CallID: call.ID, ToolName: call.Name, Output: fmt.Sprintf("approval error: %v", err), IsError: true}
		}
		switch decision {
		case models.ApprovalAllowForSession:
			approved[call.Name] = struct{}{}
		case models.ApprovalApprove:
			// proceed without recording a session-wide allowance
		default:
			return models.ToolResult{CallID: call.ID, ToolName: call.Name, Output: "user rejected", IsError: true}
		}
	}

	emit(sink, models.ToolStartedEvent(call.ID, call.Name, call.Arguments))
	execResult, err := r.registry.Execute(ctx, call.ID, call.Name, call.Arguments)
	result := toToolResult(call, execResult, err)
	emit(sink, models.ToolFinishedEvent(call.ID, call.Name, result.Output, result.IsError))
	return result
}

func toToolResult(call models.ToolCall, res *tools.Result, err error) models.ToolResult {
	if err != nil {
		return models.ToolResult{CallID: call.ID, ToolName: call.Name, Output: err.Error(), IsError: true}
	}
	return models.ToolResult{CallID: call.ID, ToolName: call.Name, Output: res.Content, IsError: res.IsError}
}

// toolDefinitions adapts the registry's tool list to the provider-neutral
// ToolDefinition shape.
func toolDefinitions(registry *tools.Registry) []llm.ToolDefinition {
	defs := registry.Definitions()
	out := make([]llm.ToolDefinition, 0, len(defs))
	for _, t := range defs {
		out = append(out, llm.ToolDefinition{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	return out
}

// buildInitialMessages prepends a System message carrying skillsCtx (may be
// empty) to the session's persisted history, translated to the provider's
// neutral ChatMessage shape.
func buildInitialMessages(skillsCtx string, history []models.AgentMessage) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	if strings.TrimSpace(skillsCtx) != "" {
		messages = append(messages, llm.ChatMessage{Role: models.RoleSystem, Content: skillsCtx})
	}
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
			ToolCalls:  m.ToolCalls,
		})
	}
	return messages
}

func errorResponse(event models.ChannelEvent, err error) models.AgentResponse {
	return models.AgentResponse{
		ChannelID: event.ChannelID,
		SessionID: event.SessionID,
		Content:   err.Error(),
		IsError:   true,
	}
}

func emit(sink chan<- models.ProgressEvent, event models.ProgressEvent) {
	if sink == nil {
		return
	}
	sink <- event
}
