// Package domain contains core domain types for the chat assistant panel.
package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Session is one continuous conversation scoped to a single application.
type Session struct {
	ID          string               `json:"id"`
	Username    string               `json:"username"`
	Application string               `json:"application"`
	StartedAt   time.Time            `json:"started_at"`
	Snapshot    *ApplicationSnapshot `json:"-"`
}

// Active returns true if an application has been selected.
func (s *Session) Active() bool {
	return s != nil && s.Application != ""
}

// NewSessionID derives the session identifier for a selection made at t.
func NewSessionID(username string, t time.Time) string {
	return username + "_" + strconv.FormatInt(t.Unix(), 10)
}

// ApplicationSnapshot is the status/spec pair fetched once per session.
// Both fields are passed to the agent verbatim.
type ApplicationSnapshot struct {
	Status json.RawMessage `json:"status"`
	Spec   json.RawMessage `json:"spec"`
}

// SessionRecord is an archived session row.
type SessionRecord struct {
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	Application  string    `json:"application"`
	MessageCount int       `json:"message_count"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
