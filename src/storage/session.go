package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/hembot/hembot/src/dialog"
)

// GetSessionByID retrieves a session by its ID. Returns nil when not found.
func GetSessionByID(ctx context.Context, db sqlscan.Querier, sessionID string) (*Session, error) {
	query := `SELECT id, state, created_at, updated_at FROM sessions WHERE id = ?`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// GetLatestSession retrieves the most recently updated session.
func GetLatestSession(ctx context.Context, db sqlscan.Querier) (*Session, error) {
	query := `SELECT id, state, created_at, updated_at FROM sessions ORDER BY updated_at DESC LIMIT 1`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListSessions returns all sessions, newest first.
func ListSessions(ctx context.Context, db sqlscan.Querier) ([]Session, error) {
	query := `SELECT id, state, created_at, updated_at FROM sessions ORDER BY updated_at DESC`
	var sessions []Session
	if err := sqlscan.Select(ctx, db, &sessions, query); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession creates a new session in the database.
func CreateSession(ctx context.Context, db Execer, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	query := `INSERT INTO sessions (id, state, created_at, updated_at) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, session.ID, session.State, session.CreatedAt, session.UpdatedAt)
	return err
}

// UpdateSessionState replaces the stored dialogue state for a session.
func UpdateSessionState(ctx context.Context, db Execer, sessionID string, state dialog.State) error {
	query := `UPDATE sessions SET state = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, JSONState{State: state}, time.Now(), sessionID)
	return err
}

// GetMessagesBySessionID retrieves the transcript of a session ordered by
// creation time.
func GetMessagesBySessionID(ctx context.Context, db sqlscan.Querier, sessionID string) ([]Message, error) {
	query := `SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY created_at`
	var messages []Message
	err := sqlscan.Select(ctx, db, &messages, query, sessionID)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateMessage appends one utterance to a session's transcript.
func CreateMessage(ctx context.Context, db Execer, message *Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	query := `INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, message.ID, message.SessionID, message.Role, message.Content, message.CreatedAt)
	return err
}
