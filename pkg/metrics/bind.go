package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BindMetrics instruments the daemon's retry-and-failover engine (spec.md
// §4.1). Nil-safe: every method is a no-op on a nil *BindMetrics so
// callers never need to branch on whether metrics are enabled.
type BindMetrics struct {
	attempts    *prometheus.CounterVec
	failovers   prometheus.Counter
	recycles    prometheus.Counter
	requestDur  *prometheus.HistogramVec
	activeIndex prometheus.Gauge
}

// NewBindMetrics constructs the daemon's collectors, or returns nil if
// InitRegistry was never called.
func NewBindMetrics() *BindMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &BindMetrics{
		attempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "webnis_bind_request_attempts_total",
				Help: "Total number of upstream HTTPS request attempts by verb and outcome.",
			},
			[]string{"verb", "outcome"},
		),
		failovers: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "webnis_bind_failovers_total",
			Help: "Total number of times the daemon cycled to a different server on a transient failure.",
		}),
		recycles: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "webnis_bind_client_recycles_total",
			Help: "Total number of times the daemon recreated its HTTPS client after a deep protocol fault.",
		}),
		requestDur: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webnis_bind_request_duration_seconds",
				Help:    "Duration of a single upstream HTTPS request attempt.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"verb"},
		),
		activeIndex: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "webnis_bind_active_server_index",
			Help: "Index of the currently active server in the configured pool.",
		}),
	}
}

func (m *BindMetrics) RecordAttempt(verb, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(verb, outcome).Inc()
}

func (m *BindMetrics) RecordFailover() {
	if m == nil {
		return
	}
	m.failovers.Inc()
}

func (m *BindMetrics) RecordClientRecycle() {
	if m == nil {
		return
	}
	m.recycles.Inc()
}

func (m *BindMetrics) RecordRequestDuration(verb string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDur.WithLabelValues(verb).Observe(d.Seconds())
}

func (m *BindMetrics) SetActiveServerIndex(i int) {
	if m == nil {
		return
	}
	m.activeIndex.Set(float64(i))
}
