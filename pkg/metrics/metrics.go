// Package metrics is C9: Prometheus counters/gauges for request and
// storage activity, plus the data behind verbose /healthz. The HTTP
// handlers for /healthz, /readyz and /metrics live in package server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric Pository exports. A fresh Registry uses
// its own prometheus.Registry rather than the global default, so tests
// can create one per case without collector-already-registered panics.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	UploadsTotal    *prometheus.CounterVec
	DownloadsTotal  *prometheus.CounterVec
	DeletesTotal    *prometheus.CounterVec
	AuthFailures    *prometheus.CounterVec
	StorageBytes    prometheus.Gauge
	PackageCount    prometheus.Gauge
}

// New creates a Registry and registers every metric with it.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pository_requests_total",
			Help: "Total HTTP requests handled, by route, method and status class.",
		}, []string{"route", "method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pository_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pository_uploads_total",
			Help: "Total package uploads, by repo and outcome.",
		}, []string{"repo", "outcome"}),
		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pository_downloads_total",
			Help: "Total package downloads, by repo.",
		}, []string{"repo"}),
		DeletesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pository_deletes_total",
			Help: "Total package deletions, by repo.",
		}, []string{"repo"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pository_auth_failures_total",
			Help: "Total authentication/authorization failures, by reason.",
		}, []string{"reason"}),
		StorageBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pository_storage_bytes",
			Help: "Total bytes stored across all repos.",
		}),
		PackageCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pository_package_count",
			Help: "Total packages stored across all repos.",
		}),
	}
}

// Gatherer exposes the underlying registry for the /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
