package assistant

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the panel counters. A nil *Metrics records nothing.
type Metrics struct {
	sessions     *prometheus.CounterVec
	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	actions      *prometheus.CounterVec
	stale        *prometheus.CounterVec
	panels       prometheus.Gauge
}

// NewMetrics registers the panel metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argocd_chat",
			Name:      "sessions_started_total",
			Help:      "Sessions started, by how the application was selected.",
		}, []string{"source"}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argocd_chat",
			Name:      "turns_total",
			Help:      "Agent turns by kind and result.",
		}, []string{"kind", "result"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "argocd_chat",
			Name:      "turn_duration_seconds",
			Help:      "Agent round trip latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argocd_chat",
			Name:      "action_runs_total",
			Help:      "Suggested action executions by result.",
		}, []string{"result"}),
		stale: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "argocd_chat",
			Name:      "stale_completions_total",
			Help:      "Completions discarded because the session changed while in flight.",
		}, []string{"operation"}),
		panels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "argocd_chat",
			Name:      "active_panels",
			Help:      "Panels currently held in memory.",
		}),
	}
}

func (m *Metrics) sessionStarted(deepLink bool) {
	if m == nil {
		return
	}
	source := "manual"
	if deepLink {
		source = "deep_link"
	}
	m.sessions.WithLabelValues(source).Inc()
}

func (m *Metrics) turn(kind, result string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) observeTurn(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) actionRun(succeeded bool) {
	if m == nil {
		return
	}
	result := "failed"
	if succeeded {
		result = "succeeded"
	}
	m.actions.WithLabelValues(result).Inc()
}

func (m *Metrics) staleCompletion(operation string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(operation).Inc()
}

func (m *Metrics) panelOpened() {
	if m == nil {
		return
	}
	m.panels.Inc()
}

func (m *Metrics) panelClosed() {
	if m == nil {
		return
	}
	m.panels.Dec()
}
