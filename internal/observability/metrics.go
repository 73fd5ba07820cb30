package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics exposed by the relay.
type Metrics struct {
	SessionsActive        prometheus.Gauge
	SessionsTotal         *prometheus.CounterVec // result: success|failure|inconsistent|timeout
	ChunksReceivedTotal   prometheus.Counter
	ChunksDuplicateTotal  prometheus.Counter
	ChunkAcksSentTotal    prometheus.Counter
	BroadcastsTotal       *prometheus.CounterVec // result: success|failure
	BroadcastDuration     prometheus.Histogram
	JanitorEvictionsTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics for the relay.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "btcmesh_sessions_active",
			Help: "Reassembly sessions currently in the active table",
		}),
		SessionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "btcmesh_sessions_total",
			Help: "Reassembly sessions reaching a terminal outcome",
		}, []string{"result"}),
		ChunksReceivedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "btcmesh_chunks_received_total",
			Help: "Inbound chunk messages accepted by the relay",
		}),
		ChunksDuplicateTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "btcmesh_chunks_duplicate_total",
			Help: "Inbound chunk messages recognized as duplicates",
		}),
		ChunkAcksSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "btcmesh_chunk_acks_sent_total",
			Help: "Per-chunk ACKs emitted by the relay",
		}),
		BroadcastsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "btcmesh_broadcasts_total",
			Help: "RPC broadcast attempts",
		}, []string{"result"}),
		BroadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "btcmesh_broadcast_duration_seconds",
			Help:    "Latency of the RPC broadcast call",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		JanitorEvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "btcmesh_janitor_evictions_total",
			Help: "Sessions evicted by the timeout janitor",
		}),
	}
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
