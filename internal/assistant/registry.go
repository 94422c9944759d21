package assistant

import (
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultPanelID is used when a client does not name its panel.
const DefaultPanelID = "default"

// Factory builds a new panel for username's panelID.
type Factory func(username, panelID string) *Panel

// Registry keeps one Panel per user and browser panel. Panels that are not
// touched for the idle TTL are evicted, which also discards their
// in-flight completions.
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	factory Factory
	metrics *Metrics
	logger  *slog.Logger
}

// NewRegistry creates a registry. Expired panels are swept every idleTTL/2.
func NewRegistry(idleTTL time.Duration, factory Factory, metrics *Metrics, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	sweep := idleTTL / 2
	if sweep <= 0 {
		sweep = time.Minute
	}
	r := &Registry{
		cache:   cache.New(idleTTL, sweep),
		factory: factory,
		metrics: metrics,
		logger:  logger,
	}
	r.cache.OnEvicted(func(key string, _ interface{}) {
		r.metrics.panelClosed()
		r.logger.Info("Panel evicted", "panel", key)
	})
	return r
}

// Key returns the registry key for a user's panel.
func Key(username, panelID string) string {
	return username + ":" + normalizePanelID(panelID)
}

func normalizePanelID(panelID string) string {
	if panelID == "" {
		return DefaultPanelID
	}
	return panelID
}

// Get returns the panel for username and panelID, creating it on first use.
// Every call refreshes the idle deadline.
func (r *Registry) Get(username, panelID string) *Panel {
	key := Key(username, panelID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(key); ok {
		p := v.(*Panel)
		r.cache.SetDefault(key, p)
		return p
	}

	p := r.factory(username, normalizePanelID(panelID))
	r.cache.SetDefault(key, p)
	r.metrics.panelOpened()
	r.logger.Debug("Panel created", "panel", key)
	return p
}

// Lookup returns an existing panel without creating one. A hit refreshes
// the idle deadline like Get.
func (r *Registry) Lookup(username, panelID string) (*Panel, bool) {
	key := Key(username, panelID)

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	p := v.(*Panel)
	r.cache.SetDefault(key, p)
	return p, true
}

// Remove closes a panel. Completions still in flight for it land on the
// detached Panel and are never seen again; the next Get starts afresh.
func (r *Registry) Remove(username, panelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(Key(username, panelID))
}

// Len returns the number of live panels.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
