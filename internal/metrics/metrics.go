// Package metrics records operational metrics for registrations and match queries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives metric events from the service and match engine.
type Recorder interface {
	// RecordRegister is called after each registration attempt.
	RecordRegister(partition string, duration time.Duration, err error)

	// RecordMatch is called after each match query. returned is the number of matches sent back.
	RecordMatch(duration time.Duration, returned int, err error)

	// RecordEmbeddingError is called when the embedder fails for a profile.
	RecordEmbeddingError()

	// RecordSelfMatch is called when a requester shows up in the opposite partition's results.
	RecordSelfMatch()

	// SetIndexSize reports the current number of vectors in a partition.
	SetIndexSize(partition string, size int)
}

// Noop discards every event.
type Noop struct{}

func (Noop) RecordRegister(string, time.Duration, error) {}
func (Noop) RecordMatch(time.Duration, int, error)       {}
func (Noop) RecordEmbeddingError()                       {}
func (Noop) RecordSelfMatch()                            {}
func (Noop) SetIndexSize(string, int)                    {}

// Prometheus exports metrics on its own registry so several instances can coexist in tests.
type Prometheus struct {
	registry        *prometheus.Registry
	registrations   *prometheus.CounterVec
	registerLatency prometheus.Histogram
	matches         *prometheus.CounterVec
	matchLatency    prometheus.Histogram
	matchesReturned prometheus.Histogram
	embeddingErrors prometheus.Counter
	selfMatches     prometheus.Counter
	indexSize       *prometheus.GaugeVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates a collector with the process and Go runtime collectors attached.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kindred_registrations_total",
			Help: "Registration attempts by partition and outcome",
		}, []string{"partition", "status"}),
		registerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kindred_register_duration_seconds",
			Help:    "Registration latency including embedding",
			Buckets: prometheus.DefBuckets,
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kindred_match_queries_total",
			Help: "Match queries by outcome",
		}, []string{"status"}),
		matchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kindred_match_duration_seconds",
			Help:    "Match query latency",
			Buckets: prometheus.DefBuckets,
		}),
		matchesReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kindred_matches_returned",
			Help:    "Number of matches returned per query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		embeddingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kindred_embedding_errors_total",
			Help: "Profiles that failed to embed",
		}),
		selfMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kindred_self_match_integrity_violations_total",
			Help: "Times a requester appeared in the opposite partition's results",
		}),
		indexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kindred_index_vectors",
			Help: "Vectors stored per partition",
		}, []string{"partition"}),
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.registrations,
		p.registerLatency,
		p.matches,
		p.matchLatency,
		p.matchesReturned,
		p.embeddingErrors,
		p.selfMatches,
		p.indexSize,
	)
	return p
}

func (p *Prometheus) RecordRegister(partition string, d time.Duration, err error) {
	p.registrations.WithLabelValues(partition, status(err)).Inc()
	p.registerLatency.Observe(d.Seconds())
}

func (p *Prometheus) RecordMatch(d time.Duration, returned int, err error) {
	p.matches.WithLabelValues(status(err)).Inc()
	p.matchLatency.Observe(d.Seconds())
	if err == nil {
		p.matchesReturned.Observe(float64(returned))
	}
}

func (p *Prometheus) RecordEmbeddingError() { p.embeddingErrors.Inc() }

func (p *Prometheus) RecordSelfMatch() { p.selfMatches.Inc() }

func (p *Prometheus) SetIndexSize(partition string, size int) {
	p.indexSize.WithLabelValues(partition).Set(float64(size))
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
