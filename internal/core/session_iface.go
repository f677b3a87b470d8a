package core

import "github.com/google/uuid"

// SessionID is the server-side handle of one live connection.
type SessionID string

// NewSessionID returns a fresh handle for a new connection.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}
