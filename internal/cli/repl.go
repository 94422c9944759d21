package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

// ApplicationLister lists the applications the user can chat about.
type ApplicationLister interface {
	ListApplications(ctx context.Context) ([]string, error)
}

// SessionLister lists archived sessions. Optional.
type SessionLister interface {
	ListSessions(ctx context.Context, username string, limit int) ([]*domain.SessionRecord, error)
}

// REPL drives a single panel from a line-oriented terminal.
type REPL struct {
	panel   *assistant.Panel
	apps    ApplicationLister
	history SessionLister
	out     io.Writer

	printed int
	session string
}

// NewREPL creates a REPL over panel. history may be nil.
func NewREPL(panel *assistant.Panel, apps ApplicationLister, history SessionLister, out io.Writer) *REPL {
	return &REPL{panel: panel, apps: apps, history: history, out: out}
}

const helpText = `Commands:
  /apps             list applications
  /select <name>    start a session for an application
  /backend <url>    set the agent backend URL
  /run              execute the suggested action
  /report           send the action result to the agent
  /history [n]      list recent sessions
  /state            show the panel state
  /help             show this help
  /quit             exit
Anything else is sent to the agent.`

// Run reads commands from in until EOF, /quit, or ctx is done.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	r.println(styles.Title.Render("Argo CD chat") + styles.Muted.Render("  (/help for commands)"))
	r.render()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		if quit := r.Execute(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// Execute handles one input line and reports whether the REPL should exit.
func (r *REPL) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.notice(r.panel.SubmitTurn(ctx, line))
		r.render()
		r.printAction(r.panel.State())
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.println(styles.Muted.Render(helpText))
	case "/apps":
		r.listApps(ctx)
	case "/select":
		r.notice(r.panel.SelectApplication(ctx, arg, assistant.SelectOptions{}))
	case "/backend":
		r.panel.SetBackendURL(ctx, arg)
		if !r.panel.BackendAllowed(arg) {
			r.notice(assistant.ErrInvalidBackendURL)
		}
	case "/run":
		if _, err := r.panel.RunAction(ctx); err != nil {
			r.notice(err)
		} else {
			r.printOutcome(r.panel.State())
		}
	case "/report":
		r.notice(r.panel.ReportOutcome(ctx))
		r.render()
		r.printAction(r.panel.State())
		return false
	case "/history":
		r.listHistory(ctx, arg)
	case "/state":
		r.printState()
	default:
		r.println(styles.Error.Render("unknown command " + cmd + ", try /help"))
	}
	r.render()
	return false
}

func (r *REPL) prompt() {
	st := r.panel.State()
	label := "no application"
	if st.Application != "" {
		label = st.Application
	}
	fmt.Fprint(r.out, styles.Muted.Render("["+label+"]")+" > ")
}

func (r *REPL) println(s string) {
	fmt.Fprintln(r.out, s)
}

// notice prints a precondition failure the way the panel shows it.
func (r *REPL) notice(err error) {
	if err == nil || errors.Is(err, assistant.ErrSessionChanged) {
		return
	}
	r.println(styles.Notice.Render("! " + err.Error()))
}

// render prints messages appended since the last call. A new session
// restarts the transcript.
func (r *REPL) render() {
	st := r.panel.State()
	if st.SessionID != r.session || len(st.Messages) < r.printed {
		r.session = st.SessionID
		r.printed = 0
		if st.SessionID != "" {
			r.println(styles.Muted.Render("session " + st.SessionID + " for " + st.Application))
		}
	}
	for _, m := range st.Messages[r.printed:] {
		r.printMessage(m)
	}
	r.printed = len(st.Messages)
}

func (r *REPL) printMessage(m domain.Message) {
	label := styles.Agent.Render(string(m.Speaker) + ":")
	if m.Speaker == domain.SpeakerUser {
		label = styles.You.Render(string(m.Speaker) + ":")
	}
	r.println(label + " " + m.Text)
}

func (r *REPL) printState() {
	st := r.panel.State()
	r.println(styles.Muted.Render(fmt.Sprintf("user %s, backend %q (valid: %t)", st.Username, st.BackendURL, st.BackendValid)))
	r.printAction(st)
	r.printOutcome(st)
}

func (r *REPL) printAction(st assistant.State) {
	if st.Action != nil {
		desc := st.Action.Method + " " + st.Action.URL
		if st.Action.HasBody() {
			desc += "\n" + string(st.Action.Body)
		}
		hint := "/run to execute"
		if !st.CanRun {
			hint = "already executed"
		}
		r.println(styles.Action.Render(desc + "\n" + styles.Muted.Render(hint)))
	}
}

func (r *REPL) printOutcome(st assistant.State) {
	if st.Outcome != nil {
		r.println(styles.Payload.Render(st.Outcome.Payload))
		r.println(styles.Muted.Render("/report to send this result to the agent"))
	}
}

func (r *REPL) listApps(ctx context.Context) {
	names, err := r.apps.ListApplications(ctx)
	if err != nil {
		r.println(styles.Error.Render("failed to list applications: " + err.Error()))
		return
	}
	if len(names) == 0 {
		r.println(styles.Muted.Render("no applications"))
		return
	}
	for _, name := range names {
		r.println("  " + name)
	}
}

func (r *REPL) listHistory(ctx context.Context, arg string) {
	if r.history == nil {
		r.println(styles.Muted.Render("history is not enabled"))
		return
	}
	limit := 10
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			r.println(styles.Error.Render("usage: /history [n]"))
			return
		}
		limit = n
	}
	sessions, err := r.history.ListSessions(ctx, r.panel.Username(), limit)
	if err != nil {
		r.println(styles.Error.Render("failed to list sessions: " + err.Error()))
		return
	}
	if len(sessions) == 0 {
		r.println(styles.Muted.Render("no sessions"))
		return
	}
	for _, s := range sessions {
		r.println(fmt.Sprintf("  %s  %-24s %3d messages  %s",
			s.StartedAt.Local().Format(time.DateTime), s.Application, s.MessageCount, styles.Muted.Render(s.SessionID)))
	}
}
