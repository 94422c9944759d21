package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/agent"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

const (
	turnUser     = "user"
	turnFeedback = "feedback"
)

// SubmitTurn sends a user-typed message to the agent together with the
// application snapshot. Blank text is a no-op. The user message and the
// cleared draft are visible before the agent answers.
func (p *Panel) SubmitTurn(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	p.mu.Lock()
	if !p.session.Active() {
		p.mu.Unlock()
		return ErrNoSession
	}
	if !p.backendUsableLocked() {
		p.mu.Unlock()
		return ErrInvalidBackendURL
	}

	c := p.changedLocked()
	c.appends = append(c.appends, p.appendLocked(domain.SpeakerUser, text))
	p.input = ""
	epoch := p.epoch
	backendURL := p.backendURL
	req := agent.TurnRequest{
		Message:     text,
		SessionID:   p.session.ID,
		Application: p.session.Application,
		AppData:     agent.SnapshotData(p.session.Snapshot),
	}
	p.mu.Unlock()
	p.commit(c)

	return p.exchange(ctx, turnUser, epoch, backendURL, req)
}

// exchange posts one turn and applies the reply if the session it was sent
// in is still current.
func (p *Panel) exchange(ctx context.Context, kind string, epoch uint64, backendURL string, req agent.TurnRequest) error {
	start := time.Now()
	turn, err := p.agent.Send(ctx, backendURL, req)
	p.metrics.observeTurn(kind, time.Since(start))

	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		p.metrics.turn(kind, "stale")
		p.metrics.staleCompletion(kind)
		p.logger.Debug("Discarded stale agent reply", "session_id", req.SessionID, "kind", kind)
		return ErrSessionChanged
	}

	c := p.changedLocked()
	if err != nil {
		c.appends = append(c.appends, p.appendLocked(domain.SpeakerAgent, MsgChatError))
		p.mu.Unlock()
		p.metrics.turn(kind, "error")
		p.logger.Warn("Agent turn failed", "session_id", req.SessionID, "kind", kind, "error", err)
		p.commit(c)
		return nil
	}

	c.appends = append(c.appends, p.appendLocked(domain.SpeakerAgent, turn.Text()))
	action, actionErr := turn.SuggestedAction()
	if action != nil {
		p.action = action
		p.actionSeq++
		p.actionRuns = 0
		p.outcome = nil
	} else if p.action != nil {
		p.action = nil
		p.actionSeq++
	}
	p.mu.Unlock()

	p.metrics.turn(kind, "ok")
	if actionErr != nil {
		p.logger.Warn("Ignored invalid suggested action", "session_id", req.SessionID, "error", actionErr)
	}
	if action != nil {
		p.logger.Info("Agent proposed action",
			"session_id", req.SessionID,
			"method", action.Method,
			"url", action.URL,
		)
	}
	p.commit(c)
	return nil
}
