package tracing

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware wraps the control server's router in an
// OpenTelemetry span per request.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(serviceName)
}

// StartHTTPSpan starts a span for a reveal-server route, tagging it
// with the run id alongside the usual HTTP attributes.
func StartHTTPSpan(r *http.Request, operationName, runID string) (oteltrace.Span, *http.Request) {
	tracer := otel.Tracer("reveal-server")
	ctx, span := tracer.Start(r.Context(), operationName)

	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.url", r.URL.String()),
		attribute.String("http.route", r.URL.Path),
		attribute.String("http.user_agent", r.UserAgent()),
	)
	if runID != "" {
		span.SetAttributes(attribute.String("run.id", runID))
	}

	r = r.WithContext(ctx)
	return span, r
}

// EndHTTPSpan ends an HTTP span with response information.
func EndHTTPSpan(span oteltrace.Span, statusCode int, responseSize int64) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int64("http.response_size", responseSize),
	)
	if statusCode >= 400 {
		span.SetAttributes(attribute.Bool("error", true))
	}
	span.End()
}