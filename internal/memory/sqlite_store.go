package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentbridge/agentbridge/internal/errs"
	"github.com/agentbridge/agentbridge/pkg/models"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nowRFC3339() string {
	return time.Now().UTC().Format(timeLayout)
}

// SQLiteStore is the durable Store implementation backed by modernc.org/sqlite,
// a pure-Go driver requiring no cgo toolchain.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (and, if necessary, creates and migrates) the sqlite database at
// dsn. dsn may be a file path or ":memory:".
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Database("open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY.

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, errs.Database("enable foreign keys", err)
	}

	m, err := newMigrator(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := m.up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureSession(ctx context.Context, id models.SessionID, channelID models.ChannelID) (models.Session, error) {
	var existing models.Session
	row := s.db.QueryRowContext(ctx, `SELECT id, channel_id, created_at, updated_at FROM sessions WHERE id = ?`, string(id))
	var createdAt, updatedAt string
	var sid, cid string
	switch err := row.Scan(&sid, &cid, &createdAt, &updatedAt); err {
	case nil:
		existing.ID = models.SessionID(sid)
		existing.ChannelID = models.ChannelID(cid)
		existing.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		existing.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		return existing, nil
	case sql.ErrNoRows:
		// fall through to create
	default:
		return models.Session{}, errs.Database("load session", err)
	}

	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx, `INSERT INTO sessions (id, channel_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		string(id), string(channelID), now, now)
	if err != nil {
		return models.Session{}, errs.Database("create session", err)
	}
	created, _ := time.Parse(timeLayout, now)
	return models.Session{ID: id, ChannelID: channelID, CreatedAt: created, UpdatedAt: created}, nil
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg models.AgentMessage) error {
	var toolCallsJSON sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return errs.Proto("marshal tool calls", err)
		}
		toolCallsJSON = sql.NullString{String: string(data), Valid: true}
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Database("begin save message", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, tool_call_id, tool_name, tool_calls_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			role = excluded.role,
			content = excluded.content,
			tool_call_id = excluded.tool_call_id,
			tool_name = excluded.tool_name,
			tool_calls_json = excluded.tool_calls_json,
			created_at = excluded.created_at
	`,
		msg.ID, string(msg.SessionID), string(msg.Role), msg.Content,
		nullableString(msg.ToolCallID), nullableString(msg.ToolName), toolCallsJSON,
		created.Format(timeLayout),
	)
	if err != nil {
		return errs.Database("save message", err)
	}

	now := nowRFC3339()
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, string(msg.SessionID)); err != nil {
		return errs.Database("touch session on save", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Database("commit save message", err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (s *SQLiteStore) LoadSession(ctx context.Context, id models.SessionID) ([]models.AgentMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, tool_call_id, tool_name, tool_calls_json, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at ASC
	`, string(id))
	if err != nil {
		return nil, errs.Database("load session messages", err)
	}
	defer rows.Close()

	var out []models.AgentMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (models.AgentMessage, error) {
	var msg models.AgentMessage
	var sessionID, role, createdAt string
	var toolCallID, toolName, toolCallsJSON sql.NullString
	if err := row.Scan(&msg.ID, &sessionID, &role, &msg.Content, &toolCallID, &toolName, &toolCallsJSON, &createdAt); err != nil {
		return models.AgentMessage{}, errs.Database("scan message", err)
	}
	msg.SessionID = models.SessionID(sessionID)
	msg.Role = models.Role(role)
	msg.ToolCallID = toolCallID.String
	msg.ToolName = toolName.String
	msg.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if toolCallsJSON.Valid && toolCallsJSON.String != "" {
		if err := json.Unmarshal([]byte(toolCallsJSON.String), &msg.ToolCalls); err != nil {
			return models.AgentMessage{}, errs.Proto("unmarshal tool calls", err)
		}
	}
	return msg, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, channel_id, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, errs.Database("list sessions", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var sess models.Session
		var id, channelID, createdAt, updatedAt string
		if err := rows.Scan(&id, &channelID, &createdAt, &updatedAt); err != nil {
			return nil, errs.Database("scan session", err)
		}
		sess.ID = models.SessionID(id)
		sess.ChannelID = models.ChannelID(channelID)
		sess.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		sess.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSessionsWithPreview(ctx context.Context) ([]models.SessionPreview, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.SessionPreview, 0, len(sessions))
	for _, sess := range sessions {
		var preview string
		row := s.db.QueryRowContext(ctx, `
			SELECT content FROM messages
			WHERE session_id = ? AND role = 'user'
			ORDER BY created_at ASC LIMIT 1
		`, string(sess.ID))
		if err := row.Scan(&preview); err != nil && err != sql.ErrNoRows {
			return nil, errs.Database("load session preview", err)
		}
		out = append(out, models.SessionPreview{Session: sess, Preview: preview})
	}
	return out, nil
}

func (s *SQLiteStore) TouchSession(ctx context.Context, id models.SessionID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, nowRFC3339(), string(id))
	if err != nil {
		return errs.Database("touch session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Database("touch session rows affected", err)
	}
	if n == 0 {
		return errs.Database("touch session: not found", nil).With("session_id", string(id))
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id models.SessionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Database("begin delete session", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, string(id)); err != nil {
		return errs.Database("delete session messages", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(id)); err != nil {
		return errs.Database("delete session", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Database("commit delete session", err)
	}
	return nil
}
