package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit recording. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Records        *prometheus.CounterVec
	SinkFailures   *prometheus.CounterVec
	AsyncDropped   prometheus.Counter
	EncodeDuration prometheus.Histogram
}

// NewMetrics registers the audit metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ekaya_audit_records_total",
			Help: "Total number of audit records built, by action and entity type",
		}, []string{"action", "entity_type"}),
		SinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ekaya_audit_sink_failures_total",
			Help: "Total number of audit records the sink failed to persist",
		}, []string{"entity_type"}),
		AsyncDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ekaya_audit_async_dropped_total",
			Help: "Total number of audit records dropped because the async queue was full",
		}),
		EncodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ekaya_audit_encode_duration_seconds",
			Help:    "Time spent encoding, diffing and redacting snapshots for one record",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}
}

func (m *Metrics) IncRecords(action, entityType string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(action, entityType).Inc()
}

func (m *Metrics) IncSinkFailures(entityType string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(entityType).Inc()
}

func (m *Metrics) IncAsyncDropped() {
	if m == nil {
		return
	}
	m.AsyncDropped.Inc()
}

func (m *Metrics) ObserveEncode(d time.Duration) {
	if m == nil {
		return
	}
	m.EncodeDuration.Observe(d.Seconds())
}
