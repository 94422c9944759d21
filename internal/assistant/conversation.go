package assistant

import (
	"strings"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// AppendUser adds a user message to the conversation. Blank text is ignored.
func (p *Panel) AppendUser(text string) {
	p.appendMessage(domain.SpeakerUser, text)
}

// AppendAgent adds an agent message to the conversation. Blank text is ignored.
func (p *Panel) AppendAgent(text string) {
	p.appendMessage(domain.SpeakerAgent, text)
}

// Messages returns a copy of the conversation in append order.
func (p *Panel) Messages() []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Message(nil), p.messages...)
}

func (p *Panel) appendMessage(speaker domain.Speaker, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	p.mu.Lock()
	c := p.changedLocked()
	c.appends = append(c.appends, p.appendLocked(speaker, text))
	p.mu.Unlock()
	p.commit(c)
}

func (p *Panel) appendLocked(speaker domain.Speaker, text string) domain.Message {
	m := domain.NewMessage(speaker, text, p.now())
	p.messages = append(p.messages, m)
	return m
}
