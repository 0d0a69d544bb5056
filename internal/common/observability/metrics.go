package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability holds the otel meter used by the scoring pipeline. Readings
// are exported through the default prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	scoreCounter  otelmetric.Int64Counter
	scoreDuration otelmetric.Float64Histogram
}

func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	scoreCounter, err := meter.Int64Counter(
		"scores.computed",
		otelmetric.WithDescription("Number of match scores computed"),
	)
	if err != nil {
		return &Observability{}, err
	}

	scoreDuration, err := meter.Float64Histogram(
		"scores.duration",
		otelmetric.WithDescription("Score computation duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return &Observability{}, err
	}

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		scoreCounter:  scoreCounter,
		scoreDuration: scoreDuration,
	}, nil
}

// RecordScore is safe on a zero Observability.
func (o *Observability) RecordScore(ctx context.Context, entityType string, duration time.Duration, status string) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("entity_type", entityType),
		attribute.String("status", status),
	)
	if o.scoreCounter != nil {
		o.scoreCounter.Add(ctx, 1, attrs)
	}
	if o.scoreDuration != nil {
		o.scoreDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
