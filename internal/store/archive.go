package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
)

const defaultArchiveQueue = 1000

type archiveEvent struct {
	session domain.Session
	msg     *domain.Message
}

// Archiver writes panel history to a Repository from a single background
// goroutine so the request path never waits on SQLite. Events are dropped
// when the queue is full.
type Archiver struct {
	repo    Repository
	logger  *slog.Logger
	timeout time.Duration
	queue   chan archiveEvent
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewArchiver starts an archiver over repo.
func NewArchiver(repo Repository, queueSize int, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultArchiveQueue
	}
	a := &Archiver{
		repo:    repo,
		logger:  logger,
		timeout: 5 * time.Second,
		queue:   make(chan archiveEvent, queueSize),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// SessionStarted records a new session.
func (a *Archiver) SessionStarted(session domain.Session) {
	a.enqueue(archiveEvent{session: session})
}

// MessageAppended records a conversation message.
func (a *Archiver) MessageAppended(session domain.Session, msg domain.Message) {
	if session.ID == "" {
		return
	}
	a.enqueue(archiveEvent{session: session, msg: &msg})
}

func (a *Archiver) enqueue(ev archiveEvent) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- ev:
	default:
		a.logger.Warn("archive queue full, dropping event", "session_id", ev.session.ID)
	}
}

// Close drains the queue and stops the writer.
func (a *Archiver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
}

func (a *Archiver) run() {
	defer close(a.done)
	for ev := range a.queue {
		a.write(ev)
	}
}

func (a *Archiver) write(ev archiveEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if ev.msg == nil {
		rec := &domain.SessionRecord{
			SessionID:   ev.session.ID,
			Username:    ev.session.Username,
			Application: ev.session.Application,
			StartedAt:   ev.session.StartedAt,
			UpdatedAt:   ev.session.StartedAt,
		}
		if err := a.repo.UpsertSession(ctx, rec); err != nil {
			a.logger.Warn("Failed to archive session", "session_id", ev.session.ID, "error", err)
		}
		return
	}

	if err := a.repo.AppendMessage(ctx, ev.session.ID, *ev.msg); err != nil {
		a.logger.Warn("Failed to archive message", "session_id", ev.session.ID, "error", err)
	}
}
