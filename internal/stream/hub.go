// Package stream pushes panel state to browsers over WebSocket.
package stream

import (
	"log/slog"
	"sync"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/assistant"
)

// Subscription receives the latest state of one panel. Intermediate states
// may be skipped when the reader is slower than the panel.
type Subscription struct {
	key string
	ch  chan assistant.State
	mu  sync.Mutex
}

// C returns the delivery channel.
func (s *Subscription) C() <-chan assistant.State {
	return s.ch
}

func (s *Subscription) offer(st assistant.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.ch <- st:
		return
	default:
	}
	// Replace the undelivered state with the newer one.
	select {
	case <-s.ch:
	default:
	}
	s.ch <- st
}

// Hub fans panel state out to every connection watching that panel.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a watcher for the panel identified by key.
func (h *Hub) Subscribe(key string) *Subscription {
	sub := &Subscription{key: key, ch: make(chan assistant.State, 1)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.active[key]; !exists {
		h.active[key] = make(map[*Subscription]struct{})
	}
	h.active[key][sub] = struct{}{}
	slog.Debug("Panel stream registered", "panel", key, "watchers", len(h.active[key]))
	return sub
}

// Unsubscribe removes a watcher.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.active[sub.key]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.active, sub.key)
	}
	slog.Debug("Panel stream unregistered", "panel", sub.key)
}

// Publish delivers st to every watcher of key without blocking.
func (h *Hub) Publish(key string, st assistant.State) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.active[key] {
		sub.offer(st)
	}
}

// Watchers returns the number of connections watching key.
func (h *Hub) Watchers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[key])
}
