package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestObservability_Records(t *testing.T) {
	reader := metric.NewManualReader()
	o := newWithReader("intake-test", reader)
	defer o.Shutdown()

	ctx := context.Background()
	o.RecordJobProcessed(ctx, "filter-eligible-products", "completed")
	o.RecordJobProcessed(ctx, "filter-eligible-products", "completed")
	o.RecordJobDuration(ctx, "filter-eligible-products", 25*time.Millisecond, "completed")
	o.RecordCatalogSource(ctx, "snapshot", true)

	got := collect(t, reader)

	processed, ok := got["jobs.processed"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, processed.DataPoints, 1)
	assert.Equal(t, int64(2), processed.DataPoints[0].Value)

	duration, ok := got["jobs.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(1), duration.DataPoints[0].Count)

	lookups, ok := got["catalog.lookups"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, lookups.DataPoints, 1)
	source, _ := lookups.DataPoints[0].Attributes.Value("source")
	assert.Equal(t, "snapshot", source.AsString())
}

func TestObservability_ZeroValue(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordJobProcessed(context.Background(), "x", "failed")
		o.RecordCatalogSource(context.Background(), "empty", true)
		o.Shutdown()
	})

	assert.NotPanics(t, func() {
		(&Observability{}).RecordJobDuration(context.Background(), "x", time.Second, "failed")
	})
}
