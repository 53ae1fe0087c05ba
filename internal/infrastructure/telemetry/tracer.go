package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given instrumentation name.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartCycleSpan starts a span covering one tenant evaluation cycle.
func StartCycleSpan(ctx context.Context, tracer trace.Tracer, tenantID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "compliance.cycle", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
	))
}

// StartServiceSpan starts a span for one pipeline stage.
func StartServiceSpan(ctx context.Context, tracer trace.Tracer, service, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, fmt.Sprintf("%s.%s", service, operation), trace.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("service.operation", operation),
	))
}

// WithSpanError records the error on the span and marks it failed.
func WithSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
