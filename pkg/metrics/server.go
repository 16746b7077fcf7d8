package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics instruments the map server's HTTP route dispatch (spec.md
// §4.2), broken down by map name and response status code. Nil-safe like
// BindMetrics.
type ServerMetrics struct {
	requests    *prometheus.CounterVec
	requestDur  *prometheus.HistogramVec
	backendErrs *prometheus.CounterVec
}

// NewServerMetrics constructs the server's collectors, or returns nil if
// InitRegistry was never called.
func NewServerMetrics() *ServerMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &ServerMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "webnis_server_requests_total",
				Help: "Total number of HTTP requests by map name and status code.",
			},
			[]string{"map", "status"},
		),
		requestDur: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webnis_server_request_duration_seconds",
				Help:    "Duration of handling one HTTP request.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"map"},
		),
		backendErrs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "webnis_server_backend_errors_total",
				Help: "Total number of backend lookup errors by map name and error kind.",
			},
			[]string{"map", "kind"},
		),
	}
}

func (m *ServerMetrics) RecordRequest(mapName string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mapName, statusLabel(status)).Inc()
	m.requestDur.WithLabelValues(mapName).Observe(d.Seconds())
}

func (m *ServerMetrics) RecordBackendError(mapName, kind string) {
	if m == nil {
		return
	}
	m.backendErrs.WithLabelValues(mapName, kind).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
