// Package metrics exposes Prometheus collectors for a locker run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	// SourcesTotal counts sources by outcome: stored, not_modified,
	// remote_error, lock_contention, error.
	SourcesTotal *prometheus.CounterVec
	// BytesStored counts payload bytes written to the blob store.
	BytesStored prometheus.Counter
	// BlobsWritten counts blob store writes (including idempotent
	// rewrites of existing content).
	BlobsWritten prometheus.Counter
}

// New builds the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SourcesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datalocker_sources_total",
				Help: "Sources processed, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		BytesStored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datalocker_bytes_stored_total",
				Help: "Payload bytes written to the blob store.",
			},
		),
		BlobsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "datalocker_blobs_written_total",
				Help: "Blob store writes performed.",
			},
		),
	}
}

// Handler returns an HTTP handler serving this process's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
