// Package tracing wires OpenTelemetry spans around orchestrator runs
// (one span per run) and control-server HTTP requests.
package tracing

import (
	"context"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Config holds the service attributes and exporter endpoint for the
// run-level tracer.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
}

// DefaultConfig reads OTEL_* environment variables, falling back to
// defaults suited to a local CDP run.
func DefaultConfig() Config {
	return Config{
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "icpc-reveal-engine"),
		ServiceVersion: getEnvOrDefault("OTEL_SERVICE_VERSION", "dev"),
		OTLPEndpoint:   getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel-collector:4318"),
	}
}

// Init sets the global tracer provider and text-map propagator. The
// returned function flushes and shuts the provider down; call it
// before the process exits. Returns nil on setup failure, since
// tracing is optional and never fatal to a run.
func Init(cfg Config) func(context.Context) error {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		log.Printf("tracing: failed to build resource: %v", err)
		return nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Printf("tracing: failed to build OTLP exporter: %v", err)
		return nil
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Printf("tracing: initialized for service %s", cfg.ServiceName)
	return tp.Shutdown
}

// Tracer returns a named tracer, e.g. tracing.Tracer("orchestrator").
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}