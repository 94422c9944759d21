// Package assistant holds the per-panel state of the chat assistant: the
// session bound to the selected application, the conversation, the live
// suggested action and its outcome.
//
// A Panel is the single writer of that state. Every network round trip runs
// outside the lock and is tagged with the session epoch it started in; a
// completion whose epoch no longer matches is discarded, so a reply for a
// previous application can never land in the current conversation.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/agent"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// RerunPolicy controls whether a live suggested action may be executed more
// than once.
type RerunPolicy string

const (
	// RerunAllow lets the user execute the same suggested action repeatedly.
	RerunAllow RerunPolicy = "allow"
	// RerunOnce blocks a second execution until a new action is proposed.
	RerunOnce RerunPolicy = "once"
)

// Directory resolves application snapshots from the dashboard.
type Directory interface {
	GetApplication(ctx context.Context, name string) (*domain.ApplicationSnapshot, error)
}

// Options configures a Panel.
type Options struct {
	Username   string
	BackendURL string
	Policy     RerunPolicy
	// BackendHosts limits which agent backends the panel will talk to.
	// Nil permits any host.
	BackendHosts *HostAllowlist

	Directory Directory
	Agent     agent.Processor
	Executor  Executor
	Recorder  Recorder
	Metrics   *Metrics
	Logger    *slog.Logger

	// OnChange is invoked with a fresh snapshot after every state change.
	// It runs outside the panel lock and may be called concurrently.
	OnChange func(State)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Panel is one chat assistant panel.
type Panel struct {
	mu sync.Mutex

	username   string
	backendURL   string
	backendHosts *HostAllowlist
	policy       RerunPolicy

	epoch   uint64
	version uint64

	session  *domain.Session
	messages []domain.Message
	input    string
	loading  bool

	action     *domain.SuggestedAction
	actionSeq  uint64
	actionRuns int
	outcome    *domain.ActionOutcome

	pendingTarget string

	directory Directory
	agent     agent.Processor
	executor  Executor
	recorder  Recorder
	metrics   *Metrics
	logger    *slog.Logger
	onChange  func(State)
	now       func() time.Time
}

// New creates an empty panel with no session.
func New(opts Options) *Panel {
	p := &Panel{
		username:   domain.UnknownUsername,
		backendURL:   strings.TrimSpace(opts.BackendURL),
		backendHosts: opts.BackendHosts,
		policy:       opts.Policy,
		directory:    opts.Directory,
		agent:        opts.Agent,
		executor:     opts.Executor,
		recorder:     opts.Recorder,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		onChange:     opts.OnChange,
		now:          opts.Now,
	}
	if opts.Username != "" {
		p.username = opts.Username
	}
	if p.policy == "" {
		p.policy = RerunAllow
	}
	if p.recorder == nil {
		p.recorder = nopRecorder{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// State is an immutable snapshot of a panel.
type State struct {
	Version       uint64                  `json:"version"`
	Username      string                  `json:"username"`
	SessionID     string                  `json:"session_id,omitempty"`
	Application   string                  `json:"application,omitempty"`
	BackendURL    string                  `json:"backend_url"`
	BackendValid  bool                    `json:"backend_valid"`
	Loading       bool                    `json:"loading"`
	HasSnapshot   bool                    `json:"has_snapshot"`
	Input         string                  `json:"input"`
	PendingTarget string                  `json:"pending_target,omitempty"`
	Messages      []domain.Message        `json:"messages"`
	Action        *domain.SuggestedAction `json:"action,omitempty"`
	ActionRuns    int                     `json:"action_runs"`
	CanRun        bool                    `json:"can_run"`
	Outcome       *domain.ActionOutcome   `json:"outcome,omitempty"`
}

// State returns a snapshot of the panel.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Panel) stateLocked() State {
	s := State{
		Version:       p.version,
		Username:      p.username,
		BackendURL:    p.backendURL,
		BackendValid:  p.backendUsableLocked(),
		Loading:       p.loading,
		Input:         p.input,
		PendingTarget: p.pendingTarget,
		Messages:      append([]domain.Message(nil), p.messages...),
		ActionRuns:    p.actionRuns,
	}
	if s.Messages == nil {
		s.Messages = []domain.Message{}
	}
	if p.session != nil {
		s.SessionID = p.session.ID
		s.Application = p.session.Application
		s.HasSnapshot = p.session.Snapshot != nil
	}
	if p.action != nil {
		a := *p.action
		s.Action = &a
		s.CanRun = p.policy != RerunOnce || p.actionRuns == 0
	}
	if p.outcome != nil {
		o := *p.outcome
		s.Outcome = &o
	}
	return s
}

// Username returns the identity that session IDs are derived from.
func (p *Panel) Username() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.username
}

// SetUsername replaces the identity used for future session IDs and may
// release a pending deep link.
func (p *Panel) SetUsername(ctx context.Context, username string) {
	if username == "" {
		username = domain.UnknownUsername
	}
	p.mu.Lock()
	p.username = username
	c := p.changedLocked()
	p.mu.Unlock()
	p.commit(c)
	p.resolveDeepLink(ctx)
}

// SetBackendURL stores the agent backend URL. The value is kept even when it
// is not a valid URL; every network operation checks it before starting.
func (p *Panel) SetBackendURL(ctx context.Context, raw string) {
	p.mu.Lock()
	p.backendURL = strings.TrimSpace(raw)
	c := p.changedLocked()
	p.mu.Unlock()
	p.commit(c)
	p.resolveDeepLink(ctx)
}

// backendUsableLocked reports whether the current backend URL is well formed
// and on an allowed host.
func (p *Panel) backendUsableLocked() bool {
	return ValidBackendURL(p.backendURL) && p.backendHosts.AllowsURL(p.backendURL)
}

// BackendAllowed reports whether raw would be accepted as the agent backend.
func (p *Panel) BackendAllowed(raw string) bool {
	raw = strings.TrimSpace(raw)
	return ValidBackendURL(raw) && p.backendHosts.AllowsURL(raw)
}

// SetInput stores the unsent input draft.
func (p *Panel) SetInput(text string) {
	p.mu.Lock()
	p.input = text
	c := p.changedLocked()
	p.mu.Unlock()
	p.commit(c)
}

// change collects the side effects of a locked mutation so they can be
// delivered after the lock is released.
type change struct {
	started *domain.Session
	session domain.Session
	appends []domain.Message
}

func (p *Panel) changedLocked() *change {
	p.version++
	c := &change{}
	if p.session != nil {
		c.session = *p.session
		c.session.Snapshot = nil
	}
	return c
}

func (p *Panel) commit(c *change) {
	if c == nil {
		return
	}
	if c.started != nil {
		p.recorder.SessionStarted(*c.started)
	}
	for _, m := range c.appends {
		p.recorder.MessageAppended(c.session, m)
	}
	if p.onChange != nil {
		p.onChange(p.State())
	}
}
