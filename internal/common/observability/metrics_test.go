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

func TestObservability_Records(t *testing.T) {
	reader := metric.NewManualReader()
	o := newWithReader("parent-portal-test", reader)
	defer o.Shutdown()

	ctx := context.Background()
	o.RecordSectionAdvance(ctx, "student", "advanced")
	o.RecordSectionAdvance(ctx, "student", "blocked")
	o.RecordSubmission(ctx, 120*time.Millisecond, "success")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
		if m.Name == "admission.section.advances" {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			assert.Len(t, sum.DataPoints, 2)
		}
	}
	assert.True(t, names["admission.section.advances"])
	assert.True(t, names["admission.submission.duration"])
}

func TestObservability_NilIsNoOp(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		o.RecordSectionAdvance(context.Background(), "student", "advanced")
		o.RecordSubmission(context.Background(), time.Second, "failed")
		o.Shutdown()
	})
}
