package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pebblestore "github.com/rzbill/docq/internal/storage/pebble"
)

var _ pebblestore.MetricsHook = (*StorageMetrics)(nil)

// StorageMetrics records embedded storage latencies and sizes.
type StorageMetrics struct {
	latency *prometheus.HistogramVec
	bytes   *prometheus.CounterVec
	ops     prometheus.Counter
}

// NewStorageMetrics registers the storage collectors on reg.
func NewStorageMetrics(reg prometheus.Registerer) *StorageMetrics {
	m := &StorageMetrics{
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docq_storage_latency_seconds",
				Help:    "Latency of embedded storage operations",
				Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
			},
			[]string{"op"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_storage_bytes_total",
				Help: "Bytes moved by embedded storage operations",
			},
			[]string{"op"},
		),
		ops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docq_storage_batch_ops_total",
			Help: "Operations committed in batches",
		}),
	}
	reg.MustRegister(m.latency, m.bytes, m.ops)
	return m
}

// ObserveRead implements the storage MetricsHook.
func (m *StorageMetrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.observe("read", elapsed, bytes)
}

// ObserveCommit implements the storage MetricsHook.
func (m *StorageMetrics) ObserveCommit(elapsed time.Duration, ops, bytes int) {
	m.observe("commit", elapsed, bytes)
	m.ops.Add(float64(ops))
}

func (m *StorageMetrics) observe(op string, elapsed time.Duration, bytes int) {
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	if bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
}
