package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TelemetryConfig is the subset of config.Config that OTel setup needs.
type TelemetryConfig struct {
	ServiceName string
	Endpoint    string // OTLP HTTP endpoint; empty disables exporting
	Enabled     bool
}

// InitOTel wires a tracer provider for the process. When cfg.Enabled is
// false it installs a no-op-equivalent provider with no exporter so spans
// are created (cheap) but never shipped — tests and local runs don't need a
// collector. Returns a shutdown func to flush on exit.
func InitOTel(ctx context.Context, cfg TelemetryConfig) (func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Enabled && cfg.Endpoint != "" {
		exp, err := newOTLPExporter(ctx, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("observability: otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
