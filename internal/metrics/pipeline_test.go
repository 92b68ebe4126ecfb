package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics() // second call must not panic on duplicate registration

	before := testutil.ToFloat64(PipelineBatchesTotal.WithLabelValues("success"))
	PipelineBatchesTotal.WithLabelValues("success").Inc()
	if got := testutil.ToFloat64(PipelineBatchesTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("pipeline_batches_total = %f, want %f", got, before+1)
	}
}

func TestRegisterEmbeddingMetrics_Idempotent(t *testing.T) {
	RegisterEmbeddingMetrics()
	RegisterEmbeddingMetrics()

	EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	if got := testutil.ToFloat64(EmbeddingCacheTotal.WithLabelValues("hit")); got < 1 {
		t.Errorf("embedding_cache_total{hit} = %f, want >= 1", got)
	}
}

func TestRegisterHTTPMetrics_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()
}
