package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for index rebuilds. The CLI
// registers them on a dedicated registry and pushes it to a Pushgateway at
// the end of a run, since a batch job is gone before any scrape.
type Metrics struct {
	// RebuildsTotal counts rebuilds.
	// Labels: result (success, error)
	RebuildsTotal *prometheus.CounterVec

	// DocumentsInserted counts documents written across rebuilds.
	DocumentsInserted prometheus.Counter

	// IndexDocuments is the document count of the last rebuilt collection.
	// Labels: collection
	IndexDocuments *prometheus.GaugeVec

	// RebuildDuration tracks how long rebuilds take.
	RebuildDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RebuildsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wikirag",
				Subsystem: "index",
				Name:      "rebuilds_total",
				Help:      "Total number of index rebuilds by result",
			},
			[]string{"result"},
		),
		DocumentsInserted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "wikirag",
				Subsystem: "index",
				Name:      "documents_inserted_total",
				Help:      "Total number of documents inserted into the index",
			},
		),
		IndexDocuments: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "wikirag",
				Subsystem: "index",
				Name:      "documents",
				Help:      "Documents in the collection after the last rebuild",
			},
			[]string{"collection"},
		),
		RebuildDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "wikirag",
				Subsystem: "index",
				Name:      "rebuild_duration_seconds",
				Help:      "Duration of index rebuilds in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// recordRebuild is nil-safe so a Writer without metrics needs no checks.
func (m *Metrics) recordRebuild(collection string, inserted, size int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RebuildDuration.Observe(elapsed.Seconds())
	m.DocumentsInserted.Add(float64(inserted))
	if err != nil {
		m.RebuildsTotal.WithLabelValues("error").Inc()
		m.IndexDocuments.WithLabelValues(collection).Set(0)
		return
	}
	m.RebuildsTotal.WithLabelValues("success").Inc()
	m.IndexDocuments.WithLabelValues(collection).Set(float64(size))
}
