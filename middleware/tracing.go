package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/novaops/steptrack"
)

// tracerName is the instrumentation scope name for steptrack tracing.
const tracerName = "github.com/novaops/steptrack"

// Tracing returns middleware that wraps step execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop
// tracer is used and this middleware becomes a pass-through with zero
// overhead.
//
// Span attributes include: steptrack.workflow, steptrack.state,
// steptrack.correlation_id, steptrack.job_run_id, steptrack.attempt_no.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, env *steptrack.Envelope, next Handler) error {
		ctx, span := tracer.Start(ctx, "steptrack.step.execute",
			trace.WithAttributes(
				attribute.String("steptrack.workflow", env.Context.WorkflowName),
				attribute.String("steptrack.state", env.Context.StateName),
				attribute.String("steptrack.correlation_id", env.Context.CorrelationID),
				attribute.String("steptrack.job_run_id", env.Context.JobRunID),
				attribute.Int("steptrack.attempt_no", env.Context.AttemptNumber),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
