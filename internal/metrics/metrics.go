// Package metrics records per-invocation Prometheus metrics. A CLI run is
// short-lived, so metrics are written once as a node-exporter textfile
// rather than served.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lifesignal"

// Source result statuses
const (
	StatusMatched = "matched"
	StatusSilent  = "silent"
	StatusError   = "error"
)

// Recorder holds one invocation's metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	SourceQueryDuration *prometheus.HistogramVec
	SourceResults       *prometheus.CounterVec
	NarrationDuration   *prometheus.HistogramVec
	ContextBytes        prometheus.Gauge
	Invocations         *prometheus.CounterVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		SourceQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_query_duration_seconds",
				Help:      "Duration of per-source matching queries in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),
		SourceResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_results_total",
				Help:      "Per-source outcomes by status (matched, silent, error)",
			},
			[]string{"source", "status"},
		),
		NarrationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "narration_duration_seconds",
				Help:      "Duration of narration requests in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
			},
			[]string{"status"},
		),
		ContextBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "context_bytes",
				Help:      "Encoded size of the last assembled context",
			},
		),
		Invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Pipeline invocations by mode and status",
			},
			[]string{"mode", "status"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveSource records one source's outcome.
func (r *Recorder) ObserveSource(source, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.SourceQueryDuration.WithLabelValues(source).Observe(d.Seconds())
	r.SourceResults.WithLabelValues(source, status).Inc()
}

// ObserveNarration records a narration attempt.
func (r *Recorder) ObserveNarration(ok bool, d time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	r.NarrationDuration.WithLabelValues(status).Observe(d.Seconds())
}

// SetContextBytes records the encoded context size.
func (r *Recorder) SetContextBytes(n int) {
	if r == nil {
		return
	}
	r.ContextBytes.Set(float64(n))
}

// ObserveInvocation counts a finished invocation.
func (r *Recorder) ObserveInvocation(mode, status string) {
	if r == nil {
		return
	}
	r.Invocations.WithLabelValues(mode, status).Inc()
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter's textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
