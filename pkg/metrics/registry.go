// Package metrics exposes Prometheus collectors for the binding daemon's
// retry engine and the map server's route dispatch (SPEC_FULL.md §4.7
// "Metrics"), served on an internal /metrics HTTP endpoint by both
// binaries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection for the process with a fresh
// prometheus.NewRegistry(), and returns it. Call once at startup before
// constructing any collector.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called. Every
// collector constructor checks this and returns nil otherwise, so callers
// can unconditionally call Record* methods on a nil collector and pay
// zero overhead when metrics are disabled.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the process registry, panicking if InitRegistry was
// never called -- collector constructors only call this after checking
// IsEnabled.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		panic("metrics: GetRegistry called before InitRegistry")
	}
	return registry
}

// Handler returns the HTTP handler serving the Prometheus exposition
// format for the process registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}
