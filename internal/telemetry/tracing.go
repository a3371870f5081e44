package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope name for every span this module
// emits.
const TracerName = "orcheo"

// SetupTracing installs a global TracerProvider and returns its shutdown
// func. With no OTEL_EXPORTER_OTLP_ENDPOINT set it exports to stdout
// (pretty-printed, useful for local runs); when the endpoint is set it
// exports over OTLP/HTTP instead. Grounded on go-claw's internal/otel
// package, trimmed to tracing only — metrics already go through
// Prometheus (see metrics.go) rather than an OTel meter provider.
func SetupTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	exporter, err := newExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("create span exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}

// Tracer returns the package-wide tracer, resolved lazily against
// whatever TracerProvider is currently registered (the no-op provider
// before SetupTracing runs, e.g. in tests).
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
