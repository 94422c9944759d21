package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/agent"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"github.com/stretchr/testify/require"
)

const testBackend = "http://agent.local/chat"

var errUnreachable = errors.New("connection refused")

type fakeDirectory struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDirectory) GetApplication(_ context.Context, name string) (*domain.ApplicationSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
	if d.err != nil {
		return nil, d.err
	}
	return &domain.ApplicationSnapshot{
		Status: json.RawMessage(`{"sync":{"status":"OutOfSync"}}`),
		Spec:   json.RawMessage(`{"project":"default","source":{"path":"` + name + `"}}`),
	}, nil
}

func (d *fakeDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakeAgent struct {
	mu       sync.Mutex
	requests []agent.TurnRequest
	backends []string
	reply    func(req agent.TurnRequest) (*agent.Turn, error)
}

func (a *fakeAgent) Send(_ context.Context, backendURL string, req agent.TurnRequest) (*agent.Turn, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.backends = append(a.backends, backendURL)
	reply := a.reply
	a.mu.Unlock()
	return reply(req)
}

func (a *fakeAgent) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *fakeAgent) last() agent.TurnRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func replyWith(t *testing.T, body string) func(agent.TurnRequest) (*agent.Turn, error) {
	t.Helper()
	turn, err := agent.ParseReply([]byte(body))
	require.NoError(t, err)
	return func(agent.TurnRequest) (*agent.Turn, error) {
		return turn, nil
	}
}

func failReply(agent.TurnRequest) (*agent.Turn, error) {
	return nil, errUnreachable
}

type fakeExecutor struct {
	mu      sync.Mutex
	runs    []domain.SuggestedAction
	outcome domain.ActionOutcome
	// wait, when set, runs before Execute returns.
	wait func()
}

func (e *fakeExecutor) Execute(_ context.Context, action domain.SuggestedAction) domain.ActionOutcome {
	e.mu.Lock()
	e.runs = append(e.runs, action)
	outcome, wait := e.outcome, e.wait
	e.mu.Unlock()
	if wait != nil {
		wait()
	}
	return outcome
}

// gatedDirectory holds the fetch for one application until released.
type gatedDirectory struct {
	fakeDirectory
	gated   string
	gateErr error
	started chan struct{}
	release chan struct{}
}

func newGatedDirectory(gated string, gateErr error) *gatedDirectory {
	return &gatedDirectory{
		gated:   gated,
		gateErr: gateErr,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (d *gatedDirectory) GetApplication(ctx context.Context, name string) (*domain.ApplicationSnapshot, error) {
	if name == d.gated {
		close(d.started)
		<-d.release
		if d.gateErr != nil {
			return nil, d.gateErr
		}
	}
	return d.fakeDirectory.GetApplication(ctx, name)
}

func (e *fakeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}

type recordingRecorder struct {
	mu       sync.Mutex
	sessions []domain.Session
	messages []domain.Message
}

func (r *recordingRecorder) SessionStarted(s domain.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recordingRecorder) MessageAppended(_ domain.Session, m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

type harness struct {
	panel    *Panel
	dir      *fakeDirectory
	agent    *fakeAgent
	executor *fakeExecutor
	recorder *recordingRecorder
}

func newHarness(t *testing.T, policy RerunPolicy) *harness {
	t.Helper()
	h := &harness{
		dir:      &fakeDirectory{},
		agent:    &fakeAgent{reply: replyWith(t, `{"output":{"comment":"hello"}}`)},
		executor: &fakeExecutor{outcome: domain.ActionOutcome{Succeeded: true, Payload: "{\n  \"ok\": true\n}"}},
		recorder: &recordingRecorder{},
	}
	h.panel = New(Options{
		Username:     "alice",
		BackendURL:   testBackend,
		BackendHosts: NewHostAllowlist(testBackend),
		Policy:       policy,
		Directory:    h.dir,
		Agent:        h.agent,
		Executor:     h.executor,
		Recorder:     h.recorder,
		Now:          func() time.Time { return time.Unix(1700000000, 0) },
	})
	return h
}

const syncProposal = `{"output":{"comment":"ok","shouldRun":true,"url":"/api/v1/applications/guestbook/sync","method":"POST"}}`

// withLiveAction selects guestbook and installs the sync proposal.
func (h *harness) withLiveAction(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.panel.SelectApplication(ctx, "guestbook", SelectOptions{}))
	h.agent.reply = replyWith(t, syncProposal)
	require.NoError(t, h.panel.SubmitTurn(ctx, "why is it out of sync?"))
	require.NotNil(t, h.panel.State().Action)
}

func texts(messages []domain.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, string(m.Speaker)+": "+m.Text)
	}
	return out
}
