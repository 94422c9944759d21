// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// Repository defines the interface for archiving chat sessions and their
// conversations.
type Repository interface {
	// UpsertSession creates a session record or refreshes its updated_at.
	UpsertSession(ctx context.Context, session *domain.SessionRecord) error

	// AppendMessage stores one conversation message for a session.
	AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error

	// GetSession retrieves a session by ID. It returns nil when none exists.
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// ListSessions returns a user's sessions, most recently updated first.
	ListSessions(ctx context.Context, username string, limit int) ([]*domain.SessionRecord, error)

	// ListMessages returns a session's messages in append order.
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)

	// CleanupExpiredSessions removes sessions, and their messages, not
	// updated within ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
