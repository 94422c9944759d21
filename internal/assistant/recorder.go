package assistant

import (
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/agent"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// Recorder observes conversation history as it is written. Implementations
// must not block; they are called outside the panel lock but on the request
// path.
type Recorder interface {
	SessionStarted(session domain.Session)
	MessageAppended(session domain.Session, msg domain.Message)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(domain.Session)                  {}
func (nopRecorder) MessageAppended(domain.Session, domain.Message) {}

// Recorders fans every event out to each recorder in order.
type Recorders []Recorder

// SessionStarted implements Recorder.
func (rs Recorders) SessionStarted(session domain.Session) {
	for _, r := range rs {
		r.SessionStarted(session)
	}
}

// MessageAppended implements Recorder.
func (rs Recorders) MessageAppended(session domain.Session, msg domain.Message) {
	for _, r := range rs {
		r.MessageAppended(session, msg)
	}
}

// ConversationRecorder writes panel history to an NDJSON conversation log.
type ConversationRecorder struct {
	Logger agent.ConversationLogger
}

// SessionStarted implements Recorder.
func (r ConversationRecorder) SessionStarted(session domain.Session) {
	r.Logger.Log(agent.ConversationLogEvent{
		Timestamp:  session.StartedAt.UTC().Format(time.RFC3339Nano),
		UserID:     session.Username,
		SessionID:  session.ID,
		Channel:    "panel",
		Direction:  "system",
		EventType:  "session_started",
		ContentRaw: session.Application,
		Meta:       map[string]any{"application": session.Application},
	})
}

// MessageAppended implements Recorder.
func (r ConversationRecorder) MessageAppended(session domain.Session, msg domain.Message) {
	if session.ID == "" {
		return
	}
	direction := "inbound"
	if msg.Speaker == domain.SpeakerAgent {
		direction = "outbound"
	}
	r.Logger.Log(agent.ConversationLogEvent{
		Timestamp:  msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		UserID:     session.Username,
		SessionID:  session.ID,
		Channel:    "panel",
		Direction:  direction,
		EventType:  "message",
		ContentRaw: msg.Text,
		Meta: map[string]any{
			"message_id":  msg.ID,
			"speaker":     string(msg.Speaker),
			"application": session.Application,
		},
	})
}
