package assistant

import (
	"context"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/agent"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// RunAction executes the live suggested action and stores its outcome. The
// action itself stays live until a later turn replaces or clears it.
func (p *Panel) RunAction(ctx context.Context) (domain.ActionOutcome, error) {
	p.mu.Lock()
	if !p.backendUsableLocked() {
		p.mu.Unlock()
		return domain.ActionOutcome{}, ErrInvalidBackendURL
	}
	if p.action == nil {
		p.mu.Unlock()
		return domain.ActionOutcome{}, ErrNoAction
	}
	if p.policy == RerunOnce && p.actionRuns > 0 {
		p.mu.Unlock()
		return domain.ActionOutcome{}, ErrActionAlreadyRun
	}
	action := *p.action
	seq := p.actionSeq
	epoch := p.epoch
	sessionID := p.session.ID
	p.actionRuns++
	c := p.changedLocked()
	p.mu.Unlock()
	p.commit(c)

	outcome := p.executor.Execute(ctx, action)
	p.metrics.actionRun(outcome.Succeeded)

	p.mu.Lock()
	if p.epoch != epoch || p.actionSeq != seq {
		p.mu.Unlock()
		p.metrics.staleCompletion("action")
		return outcome, ErrSessionChanged
	}
	p.outcome = &outcome
	c = p.changedLocked()
	p.mu.Unlock()

	p.logger.Info("Suggested action executed",
		"session_id", sessionID,
		"method", action.Method,
		"url", action.URL,
		"succeeded", outcome.Succeeded,
	)
	p.commit(c)
	return outcome, nil
}

// ReportOutcome sends the stored outcome back to the agent as a feedback
// turn. The outcome is consumed when the turn is dispatched.
func (p *Panel) ReportOutcome(ctx context.Context) error {
	p.mu.Lock()
	if p.outcome == nil {
		p.mu.Unlock()
		return ErrNoOutcome
	}
	if !p.session.Active() {
		p.mu.Unlock()
		return ErrNoSession
	}
	if !p.backendUsableLocked() {
		p.mu.Unlock()
		return ErrInvalidBackendURL
	}

	outcome := *p.outcome
	text := MsgReportFailure
	if outcome.Succeeded {
		text = MsgReportSuccess
	}
	c := p.changedLocked()
	c.appends = append(c.appends, p.appendLocked(domain.SpeakerUser, text))
	p.outcome = nil
	epoch := p.epoch
	backendURL := p.backendURL
	req := agent.TurnRequest{
		Message:     text,
		SessionID:   p.session.ID,
		Application: p.session.Application,
		AppData:     agent.ResultData(outcome.Payload),
	}
	p.mu.Unlock()
	p.commit(c)

	return p.exchange(ctx, turnFeedback, epoch, backendURL, req)
}
