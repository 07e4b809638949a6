package models

import "testing"

func TestThinkingEvent(t *testing.T) {
	ev := ThinkingEvent(3)
	if ev.Kind != ProgressLlmThinking || ev.Round != 3 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestToolStartedAndFinishedEvents(t *testing.T) {
	started := ToolStartedEvent("call-1", "system.run", []byte(`{"command":"ls"}`))
	if started.Kind != ProgressToolCallStarted || started.CallID != "call-1" {
		t.Fatalf("unexpected started event: %+v", started)
	}

	finished := ToolFinishedEvent("call-1", "system.run", "total 0", false)
	if finished.Kind != ProgressToolCallFinished || finished.IsError {
		t.Fatalf("unexpected finished event: %+v", finished)
	}
}
