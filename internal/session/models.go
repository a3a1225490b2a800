package session

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("not found")

// Session is one conversation thread. Identity is opaque to the chat core;
// callers create sessions before invoking the orchestrator.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Message is one stored turn within a session.
type Message struct {
	ID        string
	SessionID string
	Role      string // "user" or "assistant"
	Content   string
	ModelID   string // empty for user turns
	CreatedAt time.Time
}
