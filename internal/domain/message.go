package domain

import (
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who authored a conversation turn.
type Speaker string

const (
	// SpeakerUser marks turns typed or synthesized on behalf of the user.
	SpeakerUser Speaker = "You"
	// SpeakerAgent marks replies and fallback notices from the agent.
	SpeakerAgent Speaker = "Agent"
)

// Message is a single conversation turn. Messages are never mutated after append.
type Message struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message stamped with a fresh ID.
func NewMessage(speaker Speaker, text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: now,
	}
}
