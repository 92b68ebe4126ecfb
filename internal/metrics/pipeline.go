package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and search Prometheus metrics.
var (
	PipelineBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gradsearch",
			Name:      "pipeline_batches_total",
			Help:      "Embedding batches processed by the pipeline",
		},
		[]string{"status"}, // "success" / "error"
	)

	PipelineBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gradsearch",
			Name:      "pipeline_batch_duration_seconds",
			Help:      "Time to embed one pipeline batch",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	PipelineDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gradsearch",
			Name:      "pipeline_documents_total",
			Help:      "Documents handled by pipeline stages",
		},
		[]string{"stage"}, // "embedded" / "emitted" / "loaded"
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gradsearch",
			Name:      "search_requests_total",
			Help:      "Similarity queries by outcome",
		},
		[]string{"status"}, // "success" / "empty_query" / "embedding_failed" / "index_unavailable" / "error"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline and search metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineBatchesTotal)
	prometheus.MustRegister(PipelineBatchDuration)
	prometheus.MustRegister(PipelineDocumentsTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	pipelineMetricsRegistered = true
}
