// Package approval implements the pluggable tool-approval policy the agent
// runtime consults before executing a tool call it hasn't already been
// granted for the session.
package approval

import (
	"context"
	"strings"
	"sync"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// Handler decides whether a requested tool call may execute. RequestApproval
// may block — it is one of the ReAct loop's suspension points — until a
// human or policy decision is available.
type Handler interface {
	RequestApproval(ctx context.Context, req models.ToolApprovalRequest) (models.ApprovalDecision, error)
}

// Policy lists tool-name patterns that are always allowed, always denied, or
// require an explicit decision, with a fallback for anything unmatched.
// Patterns support exact match, "prefix*", "*suffix", and the catch-all "*".
type Policy struct {
	Allowlist       []string
	Denylist        []string
	RequireApproval []string
	Default         models.ApprovalDecision
}

// DefaultPolicy has empty pattern lists, so every tool call falls through to
// Default, which rejects it.
func DefaultPolicy() Policy {
	return Policy{Default: models.ApprovalReject}
}

func (p Policy) matches(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matchPattern(pattern, name) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, name string) bool {
	if pattern == "" {
		return false
	}
	if pattern == "*" {
		return true
	}
	if pattern == name {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(name, strings.TrimPrefix(pattern, "*"))
	}
	return false
}

// Asker is consulted when a tool call matches Policy.RequireApproval (or
// falls through to Default == pending-like behavior is not modeled here —
// Default must be one of Approve/Reject). It is the human-in-the-loop
// suspension point: implementations typically publish the request to a
// channel adapter and block on the matching ToolApprovalResponse.
type Asker func(ctx context.Context, req models.ToolApprovalRequest) (models.ApprovalDecision, error)

// PolicyHandler evaluates a Policy, delegating to an Asker only for tool
// calls that require an explicit decision.
type PolicyHandler struct {
	policy Policy
	ask    Asker
}

// NewPolicyHandler creates a Handler that consults policy, calling ask only
// for tool calls in policy.RequireApproval. If ask is nil, such calls are
// rejected rather than left pending indefinitely.
func NewPolicyHandler(policy Policy, ask Asker) *PolicyHandler {
	return &PolicyHandler{policy: policy, ask: ask}
}

func (h *PolicyHandler) RequestApproval(ctx context.Context, req models.ToolApprovalRequest) (models.ApprovalDecision, error) {
	if h.policy.matches(h.policy.Denylist, req.ToolName) {
		return models.ApprovalReject, nil
	}
	if h.policy.matches(h.policy.Allowlist, req.ToolName) {
		return models.ApprovalApprove, nil
	}
	if h.policy.matches(h.policy.RequireApproval, req.ToolName) {
		if h.ask == nil {
			return models.ApprovalReject, nil
		}
		return h.ask(ctx, req)
	}
	if h.policy.Default == "" {
		return models.ApprovalReject, nil
	}
	return h.policy.Default, nil
}

// AutoApprove always approves every tool call. Useful for trusted,
// unattended deployments (e.g. CLI-local sessions) where no human is in the
// loop to answer an Asker.
type AutoApprove struct{}

func (AutoApprove) RequestApproval(ctx context.Context, req models.ToolApprovalRequest) (models.ApprovalDecision, error) {
	return models.ApprovalApprove, nil
}

// PendingQueue brokers synchronous approval requests across a channel
// boundary: a channel adapter calls Await to publish a request and block for
// its answer, while the piece of the system that surfaces the prompt to a
// human calls Resolve once a ToolApprovalResponse arrives.
type PendingQueue struct {
	mu      sync.Mutex
	waiters map[string]chan models.ApprovalDecision
}

// NewPendingQueue creates an empty PendingQueue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{waiters: make(map[string]chan models.ApprovalDecision)}
}

// Await registers req and blocks until Resolve is called with the same
// CallID, ctx is canceled, or there is no path forward — whichever occurs
// first.
func (q *PendingQueue) Await(ctx context.Context, req models.ToolApprovalRequest) (models.ApprovalDecision, error) {
	ch := make(chan models.ApprovalDecision, 1)
	q.mu.Lock()
	q.waiters[req.CallID] = ch
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.waiters, req.CallID)
		q.mu.Unlock()
	}()

	select {
	case decision := <-ch:
		return decision, nil
	case <-ctx.Done():
		return models.ApprovalReject, ctx.Err()
	}
}

// Resolve delivers resp to whoever is waiting on its CallID. It is a no-op
// if nothing is currently awaiting that call.
func (q *PendingQueue) Resolve(resp models.ToolApprovalResponse) {
	q.mu.Lock()
	ch, ok := q.waiters[resp.CallID]
	q.mu.Unlock()
	if !ok {
		return
	}
	ch <- resp.Decision
}
