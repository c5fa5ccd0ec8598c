package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragpipe",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpipe",
			Name:      "response_cache_total",
			Help:      "Response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpipe",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"},
	)

	DuplicatesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpipe",
			Name:      "duplicates_detected_total",
			Help:      "Duplicates detected before storage, by detection stage",
		},
		[]string{"stage"}, // "content_hash" / "vector_hash" / "semantic"
	)

	CompressionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpipe",
			Name:      "vector_compression_total",
			Help:      "Vector compression attempts by outcome",
		},
		[]string{"algorithm", "outcome"}, // outcome: "accepted" / "rejected"
	)

	VectorsStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpipe",
			Name:      "vectors_stored_total",
			Help:      "Vectors stored and failed, by store method",
		},
		[]string{"method", "status"}, // status: "stored" / "failed"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragpipe",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragpipe",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragpipe",
			Name:      "embedding_fallback_total",
			Help:      "Queries served with the deterministic fallback embedder",
		},
	)

	ConversationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragpipe",
			Name:      "conversations_active",
			Help:      "Conversations currently held in memory",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Idempotent.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(ResponseCacheTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(DuplicatesDetectedTotal)
	prometheus.MustRegister(CompressionTotal)
	prometheus.MustRegister(VectorsStoredTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingFallbackTotal)
	prometheus.MustRegister(ConversationsActive)
	pipelineMetricsRegistered = true
}
