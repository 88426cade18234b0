package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the ingestion server.
type Metrics struct {
	BatchesIngested prometheus.Counter
	EntriesIngested prometheus.Counter
	BatchesRejected *prometheus.CounterVec
	Exports         prometheus.Counter
	ExportRows      prometheus.Histogram
}

// New creates and registers the ingestion metrics against reg. A nil reg
// registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		BatchesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_ingest_batches_total",
			Help: "Total number of audit batches stored",
		}),
		EntriesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_ingest_entries_total",
			Help: "Total number of audit entries stored",
		}),
		BatchesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voyage_ingest_batches_rejected_total",
			Help: "Total number of audit batches rejected by reason",
		}, []string{"reason"}),
		Exports: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_ingest_exports_total",
			Help: "Total number of CSV exports served",
		}),
		ExportRows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voyage_ingest_export_rows",
			Help:    "Number of rows per CSV export",
			Buckets: prometheus.ExponentialBuckets(10, 4, 6),
		}),
	}
}

// ObserveBatch records one stored batch of n entries.
func (m *Metrics) ObserveBatch(n int) {
	if m == nil {
		return
	}
	m.BatchesIngested.Inc()
	m.EntriesIngested.Add(float64(n))
}

// IncRejected records a rejected batch.
func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.BatchesRejected.WithLabelValues(reason).Inc()
}

// ObserveExport records one served export of n rows.
func (m *Metrics) ObserveExport(n int) {
	if m == nil {
		return
	}
	m.Exports.Inc()
	m.ExportRows.Observe(float64(n))
}
