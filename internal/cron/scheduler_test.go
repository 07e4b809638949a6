package cron

import (
	"context"
	"testing"
	"time"

	"github.com/agentbridge/agentbridge/pkg/models"
)

func TestAddJobRejectsInvalidExpression(t *testing.T) {
	s := New(nil)
	tx := make(chan models.ChannelEvent, 1)

	if _, err := s.AddJob("not a cron expression", "cli:local", "sess-1", "hi", tx); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if len(s.Jobs()) != 0 {
		t.Fatalf("expected no jobs registered, got %d", len(s.Jobs()))
	}
}

func TestAddJobTriggersChannelEvent(t *testing.T) {
	s := New(nil)
	tx := make(chan models.ChannelEvent, 1)

	id, err := s.AddJob("@every 10ms", "cli:local", "sess-1", "ping", tx)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty job id")
	}

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	select {
	case event := <-tx:
		if event.ChannelID != "cli:local" || event.SessionID != "sess-1" || event.UserMessage != "ping" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cron-triggered event")
	}
}

func TestRemoveJobStopsFutureTriggers(t *testing.T) {
	s := New(nil)
	tx := make(chan models.ChannelEvent, 4)

	id, err := s.AddJob("@every 10ms", "cli:local", "sess-1", "ping", tx)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	s.Start()

	<-tx // drain the first trigger to confirm the job was running

	s.RemoveJob(id)
	if jobs := s.Jobs(); len(jobs) != 0 {
		t.Fatalf("expected job removed, got %d remaining", len(jobs))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestJobsReturnsRegisteredSnapshot(t *testing.T) {
	s := New(nil)
	tx := make(chan models.ChannelEvent, 1)

	if _, err := s.AddJob("@daily", "cli:local", "sess-1", "reminder", tx); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Message != "reminder" {
		t.Fatalf("unexpected job: %+v", jobs[0])
	}
}
