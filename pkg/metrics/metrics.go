// Package metrics holds the Prometheus collectors of a relay server.
//
// Each Metrics owns its registry so several servers, e.g. in tests, can live
// in one process without colliding on the default registerer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relay"

// Metrics records relayed streams and transcript persistence.
type Metrics struct {
	Registry *prometheus.Registry

	streams            *prometheus.CounterVec
	fallbacks          prometheus.Counter
	snapshots          prometheus.Histogram
	duration           prometheus.Histogram
	transcriptsDropped prometheus.Counter
	transcriptsFailed  prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		streams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Relayed chat streams by transport strategy and outcome",
		}, []string{"strategy", "outcome"}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Streams served by the buffered fallback after the primary failed to open",
		}),
		snapshots: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshots_per_stream",
			Help:      "Content snapshots delivered per stream",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Wall time from opening a stream to its terminal event",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		transcriptsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_dropped_total",
			Help:      "Transcripts dropped because the persistence queue was full or closed",
		}),
		transcriptsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_failed_total",
			Help:      "Transcripts the storage driver failed to persist",
		}),
	}
}

// ObserveStream records one finished stream.
func (m *Metrics) ObserveStream(strategy, outcome string, fellBack bool, snapshots int, d time.Duration) {
	if m == nil {
		return
	}
	m.streams.WithLabelValues(strategy, outcome).Inc()
	if fellBack {
		m.fallbacks.Inc()
	}
	m.snapshots.Observe(float64(snapshots))
	m.duration.Observe(d.Seconds())
}

// TranscriptDropped counts a transcript the worker queue could not accept.
func (m *Metrics) TranscriptDropped() {
	if m == nil {
		return
	}
	m.transcriptsDropped.Inc()
}

// TranscriptFailed counts a transcript the storage driver rejected.
func (m *Metrics) TranscriptFailed() {
	if m == nil {
		return
	}
	m.transcriptsFailed.Inc()
}
