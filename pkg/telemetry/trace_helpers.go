package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

const defaultTracerName = "skillkit"

// Tracer returns a named tracer from the global provider, "skillkit" when name is empty.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return otel.GetTracerProvider().Tracer(name)
}

// WithSpan runs f inside a span, recording its error and status.
func WithSpan(ctx context.Context, name string, f func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Tracer(defaultTracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	err := f(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// IdentityAttributes converts skill identity into span attributes.
func IdentityAttributes(id skilltypes.Identity) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("skill.agent_id", id.AgentID),
		attribute.String("skill.task_id", id.TaskID),
	}
	if campaign := id.Campaign(); campaign != "" {
		attrs = append(attrs, attribute.String("skill.campaign_id", campaign))
	}
	return attrs
}

// CapabilityAttribute tags a span with the service capability it exercises.
func CapabilityAttribute(c skilltypes.Capability) attribute.KeyValue {
	return attribute.String("service.capability", string(c))
}

// AddEvent adds an event to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes adds attributes to the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
