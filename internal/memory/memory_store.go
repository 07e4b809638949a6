package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/pkg/models"
)

// InMemoryStore is a Store implementation backed by plain maps, for tests and
// ephemeral local runs where no file-backed database is wanted.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[models.SessionID]models.Session
	messages map[models.SessionID][]models.AgentMessage
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[models.SessionID]models.Session),
		messages: make(map[models.SessionID][]models.AgentMessage),
	}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) EnsureSession(ctx context.Context, id models.SessionID, channelID models.ChannelID) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	now := time.Now().UTC()
	sess := models.Session{ID: id, ChannelID: channelID, CreatedAt: now, UpdatedAt: now}
	s.sessions[id] = sess
	return sess, nil
}

func (s *InMemoryStore) SaveMessage(ctx context.Context, msg models.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	log := s.messages[msg.SessionID]
	replaced := false
	for i, existing := range log {
		if existing.ID == msg.ID {
			log[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		log = append(log, msg)
	}
	s.messages[msg.SessionID] = log

	sess, ok := s.sessions[msg.SessionID]
	if !ok {
		return errs.Database("save message: unknown session", nil).With("session_id", string(msg.SessionID))
	}
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[msg.SessionID] = sess
	return nil
}

func (s *InMemoryStore) LoadSession(ctx context.Context, id models.SessionID) ([]models.AgentMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[id]
	out := make([]models.AgentMessage, len(log))
	copy(out, log)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListSessionsWithPreview(ctx context.Context) ([]models.SessionPreview, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SessionPreview, 0, len(sessions))
	for _, sess := range sessions {
		preview := ""
		for _, msg := range s.messages[sess.ID] {
			if msg.Role == models.RoleUser {
				preview = msg.Content
				break
			}
		}
		out = append(out, models.SessionPreview{Session: sess, Preview: preview})
	}
	return out, nil
}

func (s *InMemoryStore) TouchSession(ctx context.Context, id models.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return errs.Database("touch session: not found", nil).With("session_id", string(id))
	}
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[id] = sess
	return nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, id models.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}
