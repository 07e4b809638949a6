package approval

import (
	"context"
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

func req(tool string) models.ToolApprovalRequest {
	return models.ToolApprovalRequest{SessionID: "s1", CallID: "c1", ToolName: tool, Args: "{}"}
}

func TestPolicyHandlerDenylistWinsOverAllowlist(t *testing.T) {
	h := NewPolicyHandler(Policy{Allowlist: []string{"system.*"}, Denylist: []string{"system.run"}}, nil)
	decision, err := h.RequestApproval(context.Background(), req("system.run"))
	if err != nil || decision != models.ApprovalReject {
		t.Fatalf("expected reject, got %s (err=%v)", decision, err)
	}
}

func TestPolicyHandlerAllowlistMatchApproves(t *testing.T) {
	h := NewPolicyHandler(Policy{Allowlist: []string{"system.*"}}, nil)
	decision, err := h.RequestApproval(context.Background(), req("system.run"))
	if err != nil || decision != models.ApprovalApprove {
		t.Fatalf("expected approve, got %s (err=%v)", decision, err)
	}
}

func TestPolicyHandlerRequireApprovalDelegatesToAsk(t *testing.T) {
	called := false
	ask := func(ctx context.Context, r models.ToolApprovalRequest) (models.ApprovalDecision, error) {
		called = true
		return models.ApprovalAllowForSession, nil
	}
	h := NewPolicyHandler(Policy{RequireApproval: []string{"container.run"}}, ask)
	decision, err := h.RequestApproval(context.Background(), req("container.run"))
	if err != nil || decision != models.ApprovalAllowForSession || !called {
		t.Fatalf("expected ask to be consulted and its decision returned, got %s called=%v err=%v", decision, called, err)
	}
}

func TestPolicyHandlerMissingAskRejectsRequireApproval(t *testing.T) {
	h := NewPolicyHandler(Policy{RequireApproval: []string{"container.run"}}, nil)
	decision, _ := h.RequestApproval(context.Background(), req("container.run"))
	if decision != models.ApprovalReject {
		t.Fatalf("expected reject when no asker configured, got %s", decision)
	}
}

func TestPolicyHandlerFallsBackToDefault(t *testing.T) {
	h := NewPolicyHandler(Policy{Default: models.ApprovalApprove}, nil)
	decision, _ := h.RequestApproval(context.Background(), req("screen.capture"))
	if decision != models.ApprovalApprove {
		t.Fatalf("expected default decision, got %s", decision)
	}
}

func TestAutoApproveAlwaysApproves(t *testing.T) {
	decision, err := (AutoApprove{}).RequestApproval(context.Background(), req("anything"))
	if err != nil || decision != models.ApprovalApprove {
		t.Fatalf("expected approve, got %s (err=%v)", decision, err)
	}
}

func TestPendingQueueAwaitResolve(t *testing.T) {
	q := NewPendingQueue()
	done := make(chan models.ApprovalDecision, 1)
	go func() {
		decision, err := q.Await(context.Background(), req("system.run"))
		if err != nil {
			t.Errorf("await: %v", err)
		}
		done <- decision
	}()

	// Give the goroutine a moment to register before resolving.
	time.Sleep(10 * time.Millisecond)
	q.Resolve(models.ToolApprovalResponse{SessionID: "s1", CallID: "c1", Decision: models.ApprovalApprove})

	select {
	case decision := <-done:
		if decision != models.ApprovalApprove {
			t.Fatalf("expected approve, got %s", decision)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resolved decision")
	}
}

func TestPendingQueueAwaitCanceledByContext(t *testing.T) {
	q := NewPendingQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Await(ctx, req("system.run"))
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}
