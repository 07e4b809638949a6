package terminal

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

func TestRunEmitsEventsForNonEmptyLines(t *testing.T) {
	in := strings.NewReader("hi\n\n  \nhow are you\n/quit\nnever reached\n")
	var out bytes.Buffer
	a := New(in, &out)

	inbound := make(chan models.ChannelEvent, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.Run(ctx, inbound); err != nil {
		t.Fatalf("run: %v", err)
	}
	close(inbound)

	var got []string
	for ev := range inbound {
		if ev.ChannelID != channelID {
			t.Fatalf("unexpected channel id: %s", ev.ChannelID)
		}
		got = append(got, ev.UserMessage)
	}
	if len(got) != 2 || got[0] != "hi" || got[1] != "how are you" {
		t.Fatalf("unexpected events: %v", got)
	}
}

func TestSendResponsePrefixesErrors(t *testing.T) {
	var out bytes.Buffer
	a := New(strings.NewReader(""), &out)

	if err := a.SendResponse(context.Background(), models.AgentResponse{Content: "done"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := a.SendResponse(context.Background(), models.AgentResponse{Content: "boom", IsError: true}); err != nil {
		t.Fatalf("send: %v", err)
	}

	want := "done\nError: boom\n"
	if out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
}
