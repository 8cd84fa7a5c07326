package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "p2pcall"

// Metrics are the call counters, nil is fine and counts nothing.
type Metrics struct {
	started    prometheus.Counter
	finished   *prometheus.CounterVec
	failed     prometheus.Counter
	stale      *prometheus.CounterVec
	candidates prometheus.Counter
	active     prometheus.Gauge
	setup      prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		started: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Total number of calls the relay accepted to start",
		}),
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_finished_total",
			Help:      "Total number of finished calls by reason",
		}, []string{"reason"}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_failed_total",
			Help:      "Total number of calls ended by a negotiation failure",
		}),
		stale: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_messages_total",
			Help:      "Total number of dropped messages of no current call",
		}, []string{"kind"}),
		candidates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_sent_total",
			Help:      "Total number of local ICE candidates sent to the relay",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "call_active",
			Help:      "1 while a call has remote media",
		}),
		setup: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_setup_seconds",
			Help:      "Time from the call start to the first remote media",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

func (m *Metrics) callStarted() {
	if m != nil {
		m.started.Inc()
	}
}

func (m *Metrics) callActive(since time.Time) {
	if m != nil {
		m.active.Set(1)
		m.setup.Observe(time.Since(since).Seconds())
	}
}

func (m *Metrics) callFinished(reason string) {
	if m != nil {
		m.finished.WithLabelValues(reason).Inc()
		m.active.Set(0)
	}
}

func (m *Metrics) callFailed() {
	if m != nil {
		m.failed.Inc()
		m.active.Set(0)
	}
}

func (m *Metrics) staleMessage(kind string) {
	if m != nil {
		m.stale.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) candidateSent() {
	if m != nil {
		m.candidates.Inc()
	}
}
