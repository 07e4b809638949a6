package router

import (
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

func TestRouteReturnsFalseWhenChannelNotRegistered(t *testing.T) {
	r := New(8, nil)
	ok := r.Route(models.ChannelEvent{ChannelID: "web:ghost", SessionID: "s1", UserMessage: "hi"})
	if ok {
		t.Fatal("expected Route to return false for an unregistered channel")
	}
}

func TestRouteReturnsTrueAndDeliversWhenRegistered(t *testing.T) {
	r := New(8, nil)
	inbound := make(chan models.ChannelEvent, 1)
	r.Register("cli:local", inbound)

	ok := r.Route(models.ChannelEvent{ChannelID: "cli:local", SessionID: "s1", UserMessage: "hi"})
	if !ok {
		t.Fatal("expected Route to return true for a registered channel")
	}
	select {
	case ev := <-inbound:
		if ev.UserMessage != "hi" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected event to be delivered")
	}
}

func TestDeregisterDropsSenderAndBinding(t *testing.T) {
	r := New(8, nil)
	inbound := make(chan models.ChannelEvent, 1)
	r.Register("cli:local", inbound)
	r.BindSession("cli:local", "s1")

	r.Deregister("cli:local")

	if ok := r.Route(models.ChannelEvent{ChannelID: "cli:local", SessionID: "s1", UserMessage: "hi"}); ok {
		t.Fatal("expected Route to return false after Deregister")
	}
	if _, ok := r.SessionFor("cli:local"); ok {
		t.Fatal("expected binding to be dropped after Deregister")
	}
}

func TestBindSessionAndSessionFor(t *testing.T) {
	r := New(8, nil)
	if _, ok := r.SessionFor("cli:local"); ok {
		t.Fatal("expected no binding before BindSession")
	}
	r.BindSession("cli:local", "s1")
	sessionID, ok := r.SessionFor("cli:local")
	if !ok || sessionID != "s1" {
		t.Fatalf("expected s1, got %q ok=%v", sessionID, ok)
	}
}

func TestChannelCount(t *testing.T) {
	r := New(8, nil)
	r.Register("cli:a", make(chan models.ChannelEvent, 1))
	r.Register("cli:b", make(chan models.ChannelEvent, 1))
	if got := r.ChannelCount(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	r.Deregister("cli:a")
	if got := r.ChannelCount(); got != 1 {
		t.Fatalf("expected 1 after deregister, got %d", got)
	}
}

// TestUnknownClientFallbackDoesNotAffectOthers covers scenario S3 at the
// router level: routing an event addressed to an unregistered channel returns
// false without touching any other channel's queue.
func TestUnknownClientFallbackDoesNotAffectOthers(t *testing.T) {
	r := New(8, nil)
	live := make(chan models.ChannelEvent, 1)
	r.Register("web:live", live)

	ok := r.Route(models.ChannelEvent{ChannelID: "web:ghost", SessionID: "s1", UserMessage: "hi"})
	if ok {
		t.Fatal("expected no sender registered for web:ghost")
	}

	select {
	case ev := <-live:
		t.Fatalf("expected live's queue to receive nothing, got %+v", ev)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestRespondAndOutbound(t *testing.T) {
	r := New(8, nil)
	r.Respond(models.AgentResponse{ChannelID: "cli:local", SessionID: "s1", Content: "done"})

	select {
	case resp := <-r.Outbound():
		if resp.Content != "done" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound response")
	}
}

func TestRouteRecoversFromSendOnClosedChannel(t *testing.T) {
	r := New(8, nil)
	inbound := make(chan models.ChannelEvent, 1)
	r.Register("cli:local", inbound)
	close(inbound)

	ok := r.Route(models.ChannelEvent{ChannelID: "cli:local", SessionID: "s1", UserMessage: "hi"})
	if ok {
		t.Fatal("expected Route to return false when the receiver's channel is closed")
	}
}
