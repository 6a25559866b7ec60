// Package metrics exposes job progress as Prometheus metrics and serves
// them, together with liveness and readiness checks, while a job runs.
//
// Metrics carry sizes, counts and durations only. Nothing derived from
// dictionary or query content is ever exported.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pctmatch"

// Collector holds the job metrics on a private registry, so several jobs
// (and tests) can run in one process.
type Collector struct {
	registry *prometheus.Registry

	BoundaryCalls        *prometheus.CounterVec
	BoundaryCallDuration *prometheus.HistogramVec
	ChunksSubmitted      prometheus.Counter
	ChunkBytes           prometheus.Histogram
	DictionaryBytes      prometheus.Gauge
	Matches              prometheus.Gauge
	Clients              prometheus.Gauge
	PositiveClients      prometheus.Gauge
	PhaseDuration        *prometheus.GaugeVec
}

// NewCollector creates and registers all job metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		BoundaryCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "boundary",
			Name:      "calls_total",
			Help:      "Boundary calls by operation and status",
		}, []string{"op", "status"}),
		BoundaryCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "boundary",
			Name:      "call_duration_seconds",
			Help:      "Histogram of boundary call durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		ChunksSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "chunks_submitted_total",
			Help:      "Dictionary chunks handed to the boundary",
		}),
		ChunkBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "chunk_bytes",
			Help:      "Histogram of encoded dictionary chunk sizes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to 256MiB
		}),
		DictionaryBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "boundary",
			Name:      "dictionary_bytes_estimate",
			Help:      "Estimated memory held by the in-boundary dictionary",
		}),
		Matches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "boundary",
			Name:      "matches",
			Help:      "Entries in the in-boundary result buffer",
		}),
		Clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "clients",
			Help:      "Clients in the uploaded query batch",
		}),
		PositiveClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "positive_clients",
			Help:      "Clients with a non-zero risk level",
		}),
		PhaseDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of each job phase",
		}, []string{"phase"}),
	}
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveCall records one boundary call.
func (c *Collector) ObserveCall(op, status string, d time.Duration) {
	c.BoundaryCalls.WithLabelValues(op, status).Inc()
	c.BoundaryCallDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveChunk records a submitted chunk of n bytes.
func (c *Collector) ObserveChunk(n int) {
	c.ChunksSubmitted.Inc()
	c.ChunkBytes.Observe(float64(n))
}

// ObservePhase records the duration of a finished phase.
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	c.PhaseDuration.WithLabelValues(phase).Set(d.Seconds())
}
