// Package metrics exposes the Prometheus collectors for the storage,
// WAL, executor and Raft layers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BufferPoolHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotdb_buffer_pool_hits_total",
			Help: "Buffer pool lookups served without a disk read",
		},
	)

	BufferPoolMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotdb_buffer_pool_misses_total",
			Help: "Buffer pool lookups that required a disk read",
		},
	)

	BufferPoolEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotdb_buffer_pool_evictions_total",
			Help: "Pages evicted from the buffer pool",
		},
	)

	WalSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slotdb_wal_sync_duration_seconds",
			Help:    "Time spent fsyncing WAL records",
			Buckets: prometheus.DefBuckets,
		},
	)

	WalRecordsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotdb_wal_records_appended_total",
			Help: "WAL records appended by kind",
		},
		[]string{"kind"},
	)

	ExecutorRowsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotdb_executor_rows_total",
			Help: "Rows produced or consumed by executor node kind",
		},
		[]string{"node"},
	)

	ExecutorNodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotdb_executor_node_duration_seconds",
			Help:    "Time spent inside an executor node's Next loop",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node"},
	)

	RaftAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotdb_raft_applied_total",
			Help: "Raft log entries applied to the state machine",
		},
	)

	RaftCommitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slotdb_raft_commit_latency_seconds",
			Help:    "Latency between Raft Apply and FSM application",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftIsLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotdb_raft_is_leader",
			Help: "1 if this node is the current Raft leader",
		},
	)
)

func init() {
	prometheus.MustRegister(
		BufferPoolHits,
		BufferPoolMisses,
		BufferPoolEvictions,
		WalSyncDuration,
		WalRecordsAppended,
		ExecutorRowsProcessed,
		ExecutorNodeDuration,
		RaftAppliedTotal,
		RaftCommitLatency,
		RaftIsLeader,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall time for a histogram observation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer { return &Timer{start: time.Now()} }

func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) ObserveDurationVec(h prometheus.ObserverVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
