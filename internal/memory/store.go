// Package memory persists sessions and their ordered messages. It provides a
// Store interface with two implementations: a modernc.org/sqlite-backed
// durable store, and an in-memory store for tests and ephemeral runs.
package memory

import (
	"context"

	"github.com/agentbridge/agentbridge/pkg/models"
)

// Store is the durable key-sequenced conversation log described by the
// memory store component: sessions grouped by channel, messages grouped by
// session and ordered by creation time.
type Store interface {
	// EnsureSession returns the session for id, creating it bound to
	// channelID if it does not yet exist.
	EnsureSession(ctx context.Context, id models.SessionID, channelID models.ChannelID) (models.Session, error)

	// SaveMessage appends msg to its session's log. Safe under concurrent
	// calls from different sessions; calls for the same session must be
	// externally serialized by the caller to preserve insertion order. A
	// duplicate message id replaces the prior row (upsert).
	SaveMessage(ctx context.Context, msg models.AgentMessage) error

	// LoadSession returns every message for id ordered by created_at
	// ascending.
	LoadSession(ctx context.Context, id models.SessionID) ([]models.AgentMessage, error)

	// ListSessions returns sessions ordered by updated_at descending.
	ListSessions(ctx context.Context) ([]models.Session, error)

	// ListSessionsWithPreview returns ListSessions annotated with each
	// session's first user message, for a session-browser sidebar.
	ListSessionsWithPreview(ctx context.Context) ([]models.SessionPreview, error)

	// TouchSession advances a session's updated_at to now without adding a
	// message, e.g. after a cron-injected event.
	TouchSession(ctx context.Context, id models.SessionID) error

	// DeleteSession removes the session and cascades its messages.
	DeleteSession(ctx context.Context, id models.SessionID) error

	// Close releases any resources held by the store.
	Close() error
}
