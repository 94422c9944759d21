package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/identity"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// HistoryReader reads archived sessions.
type HistoryReader interface {
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	ListSessions(ctx context.Context, username string, limit int) ([]*domain.SessionRecord, error)
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
}

// HistoryHandler serves the caller's archived sessions.
type HistoryHandler struct {
	repo HistoryReader
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(repo HistoryReader) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// RegisterRoutes registers history routes.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/chat/history", h.ListSessions)
	r.Get("/api/chat/history/{sessionID}", h.GetSession)
}

// ListSessions returns the caller's sessions, newest first.
func (h *HistoryHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	username := identity.UsernameFromContext(r.Context())
	sessions, err := h.repo.ListSessions(r.Context(), username, limit)
	if err != nil {
		slog.Error("Failed to list sessions", "username", username, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.SessionRecord{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// GetSession returns one of the caller's sessions with its messages.
func (h *HistoryHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	username := identity.UsernameFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	if session == nil || session.Username != username {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	messages, err := h.repo.ListMessages(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to list messages", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"session":  session,
		"messages": messages,
	})
}
