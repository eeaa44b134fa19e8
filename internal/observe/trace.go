package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the HorizonSum tracer.
const tracerName = "github.com/hzn-labs/horizonsum"

// StartSpan starts a span on the globally registered tracer provider. The
// HTTP middleware opens one span per request and the pipeline one per run and
// stage; the caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// CorrelationID extracts the trace ID from the OTel span context in ctx so
// log lines can be tied back to the run's trace. Returns the empty string
// when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
