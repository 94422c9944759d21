package assistant

import (
	"context"
	"strings"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// SelectOptions tunes SelectApplication.
type SelectOptions struct {
	// Silent marks a selection the user did not make directly (a deep link).
	// A silent selection never clears the pending deep-link target.
	Silent bool
}

// SelectApplication starts a fresh session for name. The previous
// conversation, draft, action and outcome are discarded and the application
// snapshot is fetched. A failed fetch leaves the session open without a
// snapshot and appends MsgAnalysisError.
func (p *Panel) SelectApplication(ctx context.Context, name string, opts SelectOptions) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNoApplication
	}

	p.mu.Lock()
	if !p.backendUsableLocked() {
		p.mu.Unlock()
		return ErrInvalidBackendURL
	}

	now := p.now()
	p.epoch++
	epoch := p.epoch
	p.session = &domain.Session{
		ID:          domain.NewSessionID(p.username, now),
		Username:    p.username,
		Application: name,
		StartedAt:   now,
	}
	p.messages = nil
	p.input = ""
	p.action = nil
	p.actionRuns = 0
	p.outcome = nil
	p.loading = true
	if !opts.Silent {
		p.pendingTarget = ""
	}
	c := p.changedLocked()
	started := c.session
	c.started = &started
	p.mu.Unlock()

	p.metrics.sessionStarted(opts.Silent)
	p.logger.Info("Session started",
		"session_id", started.ID,
		"application", name,
		"deep_link", opts.Silent,
	)
	p.commit(c)

	snap, err := p.directory.GetApplication(ctx, name)

	p.mu.Lock()
	if p.epoch != epoch {
		p.mu.Unlock()
		p.metrics.staleCompletion("select")
		return ErrSessionChanged
	}
	p.loading = false
	c = p.changedLocked()
	if err != nil {
		c.appends = append(c.appends, p.appendLocked(domain.SpeakerAgent, MsgAnalysisError))
	} else {
		p.session.Snapshot = snap
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("Failed to fetch application snapshot",
			"session_id", started.ID,
			"application", name,
			"error", err,
		)
	}
	p.commit(c)
	return nil
}

// SetPendingTarget records an application requested through a deep link.
// It is selected as soon as the panel has no session and a valid backend URL,
// and then forgotten.
func (p *Panel) SetPendingTarget(ctx context.Context, name string) {
	p.mu.Lock()
	p.pendingTarget = strings.TrimSpace(name)
	c := p.changedLocked()
	p.mu.Unlock()
	p.commit(c)
	p.resolveDeepLink(ctx)
}

func (p *Panel) resolveDeepLink(ctx context.Context) {
	p.mu.Lock()
	target := p.pendingTarget
	if target == "" || p.session.Active() || !p.backendUsableLocked() {
		p.mu.Unlock()
		return
	}
	p.pendingTarget = ""
	p.mu.Unlock()

	if err := p.SelectApplication(ctx, target, SelectOptions{Silent: true}); err != nil {
		p.logger.Debug("Deep link selection did not complete", "application", target, "error", err)
	}
}
