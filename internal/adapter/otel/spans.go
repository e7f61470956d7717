package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fleetconsole"

// StartDialSpan starts a span for one backend connection attempt.
func StartDialSpan(ctx context.Context, url string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "backend.dial",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("backend.url", url),
			attribute.Int("backend.attempt", attempt),
		),
	)
}

// StartDispatchSpan starts a span for one operator command.
func StartDispatchSpan(ctx context.Context, kind string, botID int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "command.dispatch",
		trace.WithAttributes(
			attribute.String("command.kind", kind),
			attribute.Int("command.bot_id", botID),
		),
	)
}

// EndSpan marks span failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
