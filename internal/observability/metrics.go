package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arcade"

// Metrics holds the server's Prometheus collectors. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	queueWaiting     *prometheus.GaugeVec
	matchesTotal     *prometheus.CounterVec
	sessionsCreated  *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	sessionsEnded    *prometheus.CounterVec
	sessionDuration  *prometheus.HistogramVec
	messagesTotal    *prometheus.CounterVec
	sessionsPurged   prometheus.Counter
	deliveryFailures prometheus.Counter
}

// NewMetrics registers the collectors with reg.
//
// Precondition: reg must be non-nil and must not already hold these collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		queueWaiting: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "queue_waiting",
			Help:      "Players waiting in a matchmaking queue.",
		}, []string{"kind"}),
		matchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matchmaking",
			Name:      "matches_total",
			Help:      "Pairs produced by matchmaking passes.",
		}, []string{"kind"}),
		sessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Session creation attempts by outcome.",
		}, []string{"kind", "result"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently registered.",
		}),
		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ended_total",
			Help:      "Sessions that reached a terminal state.",
		}, []string{"kind", "state"}),
		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Wall time from session start to terminal state.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind"}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_total",
			Help:      "Inbox messages processed by session workers.",
		}, []string{"type"}),
		sessionsPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "purged_total",
			Help:      "Sessions removed by the expiry sweep.",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "player",
			Name:      "delivery_failures_total",
			Help:      "Notifications a player handle refused.",
		}),
	}
}

// QueueWaiting sets the waiting count for kind.
func (m *Metrics) QueueWaiting(kind string, n int) {
	if m == nil {
		return
	}
	m.queueWaiting.WithLabelValues(kind).Set(float64(n))
}

// MatchMade counts one pair for kind.
func (m *Metrics) MatchMade(kind string) {
	if m == nil {
		return
	}
	m.matchesTotal.WithLabelValues(kind).Inc()
}

// SessionCreated counts a creation attempt; ok selects the result label.
func (m *Metrics) SessionCreated(kind string, ok bool) {
	if m == nil {
		return
	}
	if !ok {
		m.sessionsCreated.WithLabelValues(kind, "failed").Inc()
		return
	}
	m.sessionsCreated.WithLabelValues(kind, "ok").Inc()
	m.sessionsActive.Inc()
}

// SessionEnded records a terminal transition.
func (m *Metrics) SessionEnded(kind, state string, lived time.Duration) {
	if m == nil {
		return
	}
	m.sessionsEnded.WithLabelValues(kind, state).Inc()
	m.sessionDuration.WithLabelValues(kind).Observe(lived.Seconds())
	m.sessionsActive.Dec()
}

// MessageProcessed counts one inbox message of type typ.
func (m *Metrics) MessageProcessed(typ string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(typ).Inc()
}

// SessionsPurged counts sessions removed by the expiry sweep.
func (m *Metrics) SessionsPurged(n int) {
	if m == nil {
		return
	}
	m.sessionsPurged.Add(float64(n))
}

// DeliveryFailed counts a refused notification.
func (m *Metrics) DeliveryFailed() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}
