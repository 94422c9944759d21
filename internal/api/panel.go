package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/identity"
)

// PanelRegistry returns the panel for a user's browser panel.
type PanelRegistry interface {
	Get(username, panelID string) *assistant.Panel
	Remove(username, panelID string)
}

// ApplicationLister lists the applications visible to the caller.
type ApplicationLister interface {
	ListApplications(ctx context.Context) ([]string, error)
}

// PanelHandler serves the chat panel operations.
type PanelHandler struct {
	panels  PanelRegistry
	apps    ApplicationLister
	limiter *RateLimiter
	maxBody int64
}

// NewPanelHandler creates a panel handler. A nil limiter disables throttling.
func NewPanelHandler(panels PanelRegistry, apps ApplicationLister, limiter *RateLimiter) *PanelHandler {
	return &PanelHandler{
		panels:  panels,
		apps:    apps,
		limiter: limiter,
		maxBody: defaultMaxRequestBodySize,
	}
}

type backendRequest struct {
	URL string `json:"url" validate:"max=2048"`
}

type inputRequest struct {
	Text string `json:"text" validate:"max=65536"`
}

type selectRequest struct {
	Application string `json:"application" validate:"required,max=253"`
}

type messageRequest struct {
	Text string `json:"text" validate:"max=65536"`
}

// RegisterRoutes registers panel routes.
func (h *PanelHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/applications", h.ListApplications)
		r.Route("/panel", func(r chi.Router) {
			r.Get("/", h.GetPanel)
			r.Delete("/", h.ClosePanel)
			r.Put("/backend", h.SetBackend)
			r.Put("/input", h.SetInput)
			r.Group(func(r chi.Router) {
				if h.limiter != nil {
					r.Use(h.limiter.Middleware)
				}
				r.Post("/select", h.Select)
				r.Post("/messages", h.SendMessage)
				r.Post("/action/run", h.RunAction)
				r.Post("/action/report", h.ReportOutcome)
			})
		})
	})
}

func (h *PanelHandler) panel(r *http.Request) *assistant.Panel {
	return h.panels.Get(identity.UsernameFromContext(r.Context()), identity.PanelIDFromContext(r.Context()))
}

// detached keeps the caller's identity values but outlives the request, so
// a closed tab does not abort a turn that is already in flight.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// writeResult answers with the panel state, or with a notice for a failed
// precondition. A completion discarded because the session moved on is not
// an error for the caller.
func writeResult(w http.ResponseWriter, r *http.Request, p *assistant.Panel, op string, err error) {
	if err != nil && !errors.Is(err, assistant.ErrSessionChanged) {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("Panel operation failed", "op", op, "username", identity.UsernameFromContext(r.Context()), "error", err)
			Error(w, status, "internal error")
			return
		}
		Error(w, status, err.Error())
		return
	}
	JSON(w, http.StatusOK, p.State())
}

// GetMe returns the caller's identity.
func (h *PanelHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"username": identity.UsernameFromContext(r.Context()),
		"panel_id": identity.PanelIDFromContext(r.Context()),
	})
}

// ListApplications returns the application names for the selector.
func (h *PanelHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	names, err := h.apps.ListApplications(r.Context())
	if err != nil {
		slog.Warn("Failed to list applications", "username", identity.UsernameFromContext(r.Context()), "error", err)
		Error(w, http.StatusBadGateway, "failed to list applications")
		return
	}
	if names == nil {
		names = []string{}
	}
	JSON(w, http.StatusOK, map[string][]string{"items": names})
}

// GetPanel returns the panel state. An "app" query parameter is a deep
// link: it is remembered and selected once the panel can select it.
func (h *PanelHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	p := h.panel(r)
	if app := strings.TrimSpace(r.URL.Query().Get("app")); app != "" {
		p.SetPendingTarget(detached(r), app)
	}
	JSON(w, http.StatusOK, p.State())
}

// ClosePanel discards the caller's panel. The next request opens a new one.
func (h *PanelHandler) ClosePanel(w http.ResponseWriter, r *http.Request) {
	username := identity.UsernameFromContext(r.Context())
	panelID := identity.PanelIDFromContext(r.Context())
	h.panels.Remove(username, panelID)
	slog.Info("Panel closed", "username", username, "panel_id", panelID)
	w.WriteHeader(http.StatusNoContent)
}

// SetBackend stores the agent backend URL for the panel.
func (h *PanelHandler) SetBackend(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if err := decodeBody(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	p := h.panel(r)
	p.SetBackendURL(detached(r), req.URL)
	JSON(w, http.StatusOK, p.State())
}

// SetInput stores the unsent draft.
func (h *PanelHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeBody(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	p := h.panel(r)
	p.SetInput(req.Text)
	JSON(w, http.StatusOK, p.State())
}

// Select starts a session for an application.
func (h *PanelHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	p := h.panel(r)
	err := p.SelectApplication(detached(r), req.Application, assistant.SelectOptions{})
	writeResult(w, r, p, "select", err)
}

// SendMessage submits a user turn.
func (h *PanelHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(w, r, h.maxBody, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	p := h.panel(r)
	err := p.SubmitTurn(detached(r), req.Text)
	writeResult(w, r, p, "send", err)
}

// RunAction executes the live suggested action.
func (h *PanelHandler) RunAction(w http.ResponseWriter, r *http.Request) {
	p := h.panel(r)
	_, err := p.RunAction(detached(r))
	writeResult(w, r, p, "run", err)
}

// ReportOutcome sends the executed action's outcome back to the agent.
func (h *PanelHandler) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	p := h.panel(r)
	err := p.ReportOutcome(detached(r))
	writeResult(w, r, p, "report", err)
}
