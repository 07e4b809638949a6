package ws

import (
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// TestUnknownClientFallbackCompletesWithoutSideEffects covers scenario S3:
// sending a response to an unregistered client completes without affecting
// a different client's queue.
func TestUnknownClientFallbackCompletesWithoutSideEffects(t *testing.T) {
	a := New(Config{LongLivedToken: "secret"})

	live := make(chan Frame, 1)
	a.clientsMu.Lock()
	a.clients["live"] = live
	a.clientsMu.Unlock()

	if err := a.SendResponse(nil, models.AgentResponse{ChannelID: "ws:ghost", Content: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case frame := <-live:
		t.Fatalf("expected live's queue to receive nothing, got %+v", frame)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestSendResponseDeliversToKnownClient(t *testing.T) {
	a := New(Config{LongLivedToken: "secret"})

	live := make(chan Frame, 1)
	a.clientsMu.Lock()
	a.clients["live"] = live
	a.clientsMu.Unlock()

	if err := a.SendResponse(nil, models.AgentResponse{ChannelID: "ws:live", Content: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case frame := <-live:
		if frame.Content != "hi" || frame.Type != frameResponse {
			t.Fatalf("unexpected frame: %+v", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestValidTokenExpiresAfterTTL(t *testing.T) {
	a := New(Config{LongLivedToken: "secret", SessionTokenTTL: time.Millisecond})
	a.tokensMu.Lock()
	a.tokens["tok"] = sessionToken{expiresAt: time.Now().Add(-time.Second)}
	a.tokensMu.Unlock()

	if a.validToken("tok") {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestCheckOriginAllowsWildcardByDefault(t *testing.T) {
	a := New(Config{})
	if !a.checkOrigin(nil) {
		t.Fatal("expected default policy to allow any origin")
	}
}
