// Package cron wraps robfig/cron/v3 to inject fixed-text ChannelEvents into
// a channel on a schedule.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// Job is a registered cron-triggered event injection.
type Job struct {
	ID        string
	CronExpr  string
	ChannelID models.ChannelID
	SessionID models.SessionID
	Message   string
}

// Scheduler manages cron-triggered ChannelEvent injection.
type Scheduler struct {
	logger *slog.Logger
	engine *cron.Cron

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	nextID  int
}

// New creates a Scheduler with second-optional, descriptor-enabled cron
// expression parsing (e.g. "@every 5m", "@hourly").
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &Scheduler{
		logger:  logger.With("component", "cron"),
		engine:  cron.New(cron.WithParser(parser)),
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob registers a job that pushes a ChannelEvent carrying message onto tx
// on every trigger of cronExpr. The expression is validated immediately; an
// invalid expression is rejected without registering anything.
func (s *Scheduler) AddJob(cronExpr string, channelID models.ChannelID, sessionID models.SessionID, message string, tx chan<- models.ChannelEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := fmt.Sprintf("cron-%d", s.nextID)
	job := Job{ID: id, CronExpr: cronExpr, ChannelID: channelID, SessionID: sessionID, Message: message}

	entryID, err := s.engine.AddFunc(cronExpr, func() {
		event := models.ChannelEvent{
			ChannelID:   channelID,
			SessionID:   sessionID,
			UserMessage: message,
		}
		select {
		case tx <- event:
		default:
			s.logger.Warn("cron event dropped: channel full", "job_id", id, "channel_id", channelID)
		}
	})
	if err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.jobs[id] = job
	s.entries[id] = entryID
	return id, nil
}

// RemoveJob cancels a previously registered job. It is a no-op if id is
// unknown.
func (s *Scheduler) RemoveJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[id]
	if !ok {
		return
	}
	s.engine.Remove(entryID)
	delete(s.entries, id)
	delete(s.jobs, id)
}

// Jobs returns a snapshot of currently registered jobs.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

// Start begins the background dispatcher. It returns immediately; the
// scheduler runs in its own goroutine until Shutdown is called.
func (s *Scheduler) Start() {
	s.engine.Start()
}

// Shutdown stops the dispatcher, waiting for any in-flight job invocation to
// finish or for ctx to be canceled, whichever comes first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	stopCtx := s.engine.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
