package observability

import (
	"context"
	"time"

	"parent-portal/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Recorder receives workflow measurements. A nil *Observability is a valid no-op Recorder.
type Recorder interface {
	RecordSectionAdvance(ctx context.Context, section, outcome string)
	RecordSubmission(ctx context.Context, duration time.Duration, status string)
}

type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	sectionCounter     otelmetric.Int64Counter
	submissionDuration otelmetric.Float64Histogram
}

// New wires an OpenTelemetry meter to the prometheus exporter. On exporter
// failure it logs and returns an Observability that records nothing.
func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		if log != nil {
			log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err})
		}
		return &Observability{}
	}
	return newWithReader(serviceName, exporter)
}

func newWithReader(serviceName string, reader metric.Reader) *Observability {
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	sectionCounter, _ := meter.Int64Counter(
		"admission.section.advances",
		otelmetric.WithDescription("Section advance attempts"),
	)

	submissionDuration, _ := meter.Float64Histogram(
		"admission.submission.duration",
		otelmetric.WithDescription("Admission submission duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		sectionCounter:     sectionCounter,
		submissionDuration: submissionDuration,
	}
}

func (o *Observability) RecordSectionAdvance(ctx context.Context, section, outcome string) {
	if o == nil || o.sectionCounter == nil {
		return
	}
	o.sectionCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("section", section),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordSubmission(ctx context.Context, duration time.Duration, status string) {
	if o == nil || o.submissionDuration == nil {
		return
	}
	o.submissionDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
