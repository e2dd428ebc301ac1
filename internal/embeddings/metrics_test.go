package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestMetrics_RecordGeneration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := newMetrics(mp.Meter("test"), zap.NewNop())

	ctx := context.Background()
	m.RecordGeneration(ctx, "embed-english-v3.0", "embed_batch", 120*time.Millisecond, 96, nil)
	m.RecordGeneration(ctx, "embed-english-v3.0", "embed_batch", 80*time.Millisecond, 4, errors.New("boom"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			found[metric.Name] = true
			if metric.Name == "wikirag.embedding.errors_total" {
				sum, ok := metric.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found["wikirag.embedding.duration_seconds"])
	assert.True(t, found["wikirag.embedding.batch_size"])
	assert.True(t, found["wikirag.embedding.errors_total"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordGeneration(context.Background(), "m", "op", time.Second, 1, nil)
}
