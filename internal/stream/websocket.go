package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/identity"
)

// PanelSource finds the panel a connection watches. Watching never opens a
// panel; the REST API does that.
type PanelSource interface {
	Lookup(username, panelID string) (*assistant.Panel, bool)
}

// WebSocketHandler streams panel state to the browser.
type WebSocketHandler struct {
	hub           *Hub
	panels        PanelSource
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, panels PanelSource, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		panels:        panels,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage is a client to server frame.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// stateFrame is a server to client frame carrying a full panel snapshot.
type stateFrame struct {
	Type  string          `json:"type"`
	State assistant.State `json:"state"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := identity.UsernameFromContext(r.Context())
	panelID := identity.PanelIDFromContext(r.Context())
	key := assistant.Key(username, panelID)
	slog.Info("WebSocket connection request", "username", username, "panel_id", panelID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	panel, ok := h.panels.Lookup(username, panelID)
	if !ok {
		http.Error(w, "panel not open", http.StatusNotFound)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "username", username)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "username", username)
		}
	}()

	sub := h.hub.Subscribe(key)
	defer h.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The initial snapshot goes through the subscription so it is ordered
	// with concurrent updates.
	sub.offer(panel.State())

	go func() {
		defer cancel()
		h.inputLoop(ctx, ws, panel, username)
	}()

	h.outputLoop(ctx, ws, sub)
	slog.Info("Panel stream ended", "username", username, "panel_id", panelID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, panel *assistant.Panel, username string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "username", username)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "username", username)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("Ignoring malformed stream frame", "username", username, "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			if err := h.writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		case "input":
			panel.SetInput(msg.Content)
		}
	}
}

func (h *WebSocketHandler) outputLoop(ctx context.Context, ws *websocket.Conn, sub *Subscription) {
	var sent uint64
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-sub.C():
			if st.Version < sent {
				continue
			}
			sent = st.Version
			if err := h.writeJSON(ctx, ws, stateFrame{Type: "state", State: st}); err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err)
				}
				return
			}
		}
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
