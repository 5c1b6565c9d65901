package storage

import "time"

// Session is one persisted conversation. State carries the full dialogue
// state as JSON so a session can resume after a restart.
type Session struct {
	ID        string    `json:"id" db:"id"`
	State     JSONState `json:"state" db:"state"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is one stored utterance, kept as a transcript alongside the
// session state.
type Message struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
