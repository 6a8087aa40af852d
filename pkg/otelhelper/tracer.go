// Package otelhelper provides OpenTelemetry tracing for workflow execution.
package otelhelper

import (
	"context"

	"github.com/quasarerp/automations/pkg/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	WorkflowIDKey = "quasar.workflow.id"
	InstanceIDKey = "quasar.instance.id"
	LeadIDKey     = "quasar.lead.id"
	NodeIDKey     = "quasar.node.id"
	NodeTypeKey   = "quasar.node.type"
	StatusKey     = "quasar.instance.status"
)

// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	provider, err := newTracerProvider(ctx, serviceName)
	if err != nil {
		return nil, nil, err
	}

	return provider.Tracer(serviceName), provider.Shutdown, nil
}

// DefaultTracer returns the tracer of the globally installed provider, a no-op
// until NewTracer has run.
//
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func DefaultTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// InstanceAttributes describes an instance on a span.
func InstanceAttributes(instance *models.WorkflowInstance) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(WorkflowIDKey, instance.WorkflowID),
		attribute.String(InstanceIDKey, instance.ID),
		attribute.String(LeadIDKey, instance.LeadID),
		attribute.String(StatusKey, string(instance.Status)),
	}
}

// NodeAttributes describes a graph node on a span.
func NodeAttributes(node *models.Node) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(NodeIDKey, node.ID),
		attribute.String(NodeTypeKey, string(node.Type)),
	}
}

func newTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}
