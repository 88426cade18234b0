package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flush outcomes used as the "result" label.
const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultSkipped  = "skipped"
	resultRejected = "rejected"
)

// Metrics holds Prometheus metrics for audit delivery.
type Metrics struct {
	Enqueued       prometheus.Counter
	Dropped        prometheus.Counter
	Unattributed   prometheus.Counter
	Invalid        prometheus.Counter
	Rejected       prometheus.Counter
	FinalFlushLost prometheus.Counter
	Flushes        *prometheus.CounterVec
	BatchSize      prometheus.Histogram
	SendDuration   prometheus.Histogram
	QueueDepth     prometheus.Gauge
	StoreDegraded  prometheus.Gauge
}

// NewMetrics creates delivery metrics registered against reg. A nil reg
// registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Enqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_audit_entries_enqueued_total",
			Help: "Total number of audit entries added to the delivery queue",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_audit_entries_dropped_total",
			Help: "Total number of audit entries evicted because the delivery queue was full",
		}),
		Unattributed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_audit_entries_unattributed_total",
			Help: "Total number of audit records discarded because no actor was authenticated",
		}),
		Invalid: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_audit_entries_invalid_total",
			Help: "Total number of audit records discarded because the entry failed validation",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_audit_entries_rejected_total",
			Help: "Total number of audit entries discarded because the store rejected their batch as malformed",
		}),
		FinalFlushLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "voyage_audit_final_flush_lost_total",
			Help: "Total number of audit entries lost because the shutdown flush failed",
		}),
		Flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voyage_audit_flushes_total",
			Help: "Total number of flush attempts by result",
		}, []string{"result"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voyage_audit_batch_size",
			Help:    "Number of entries per delivered batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
		SendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voyage_audit_send_duration_seconds",
			Help:    "Duration of batch delivery attempts",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voyage_audit_queue_depth",
			Help: "Current number of entries awaiting delivery",
		}),
		StoreDegraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voyage_audit_store_degraded",
			Help: "1 while consecutive deliveries to the ingestion store are failing",
		}),
	}
}

func (m *Metrics) incEnqueued() {
	if m != nil {
		m.Enqueued.Inc()
	}
}

func (m *Metrics) addDropped(n int) {
	if m != nil && n > 0 {
		m.Dropped.Add(float64(n))
	}
}

func (m *Metrics) incUnattributed() {
	if m != nil {
		m.Unattributed.Inc()
	}
}

func (m *Metrics) incInvalid() {
	if m != nil {
		m.Invalid.Inc()
	}
}

func (m *Metrics) addRejected(n int) {
	if m != nil && n > 0 {
		m.Rejected.Add(float64(n))
	}
}

func (m *Metrics) addFinalFlushLost(n int) {
	if m != nil && n > 0 {
		m.FinalFlushLost.Add(float64(n))
	}
}

func (m *Metrics) incFlush(result string) {
	if m != nil {
		m.Flushes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) observeBatch(size int, seconds float64) {
	if m != nil {
		m.BatchSize.Observe(float64(size))
		m.SendDuration.Observe(seconds)
	}
}

func (m *Metrics) setDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) setDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.StoreDegraded.Set(1)
		return
	}
	m.StoreDegraded.Set(0)
}
