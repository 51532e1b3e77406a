package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the tracer all toolkit spans are created from.
var tracer = otel.Tracer("autotrade")

// GetTracer returns the tracer for creating spans outside the job helpers.
func GetTracer() trace.Tracer {
	return tracer
}

// StartJob starts a span covering one scheduled job run.
// It records the job name as a span attribute so runs of the same job
// can be grouped in the trace backend.
//
// Example usage:
//
//	ctx, span := tracing.StartJob(ctx, "collect")
//	err := service.CollectAll(ctx)
//	tracing.EndJob(span, err)
func StartJob(ctx context.Context, job string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "job "+job,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("job.name", job)),
	)
}

// EndJob records the run outcome on the span and ends it.
// A non-nil err marks the span as failed and records the error event.
func EndJob(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("error", true))
	}
	span.End()
}

// StartStep starts a child span for one unit of work inside a job run,
// such as collecting a single market or crawling a single source.
func StartStep(ctx context.Context, step, target string) (context.Context, trace.Span) {
	return tracer.Start(ctx, step+" "+target,
		trace.WithAttributes(attribute.String("target", target)),
	)
}
