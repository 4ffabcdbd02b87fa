package metrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

// StartRunSpan starts a span named after the job.
// The run status is attached when the span ends.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, run *model.PipelineRun) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "run "+run.JobName, trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("job.name", run.JobName),
	))
	logger.Debugf("Tracer: span started for run '%s'", run.ID)
	return ctx, func() {
		span.SetAttributes(attribute.String("run.status", run.Status.String()))
		span.End()
	}
}

// StartStepSpan starts a span named after the step.
func (t *OpenTelemetryTracer) StartStepSpan(ctx context.Context, step *model.StepRun) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "step "+step.StepName, trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("run.id", step.PipelineRunID),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("step.status", step.Status.String()),
			attribute.Int("step.read_count", step.ReadCount),
			attribute.Int("step.write_count", step.WriteCount),
			attribute.Int("step.filter_count", step.FilterCount),
		)
		span.End()
	}
}

// RecordError records err on the span in ctx and marks the span as failed.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent adds an event to the span in ctx.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func toAttributes(values map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := values[k].(type) {
		case string:
			attrs = append(attrs, attribute.String(k, v))
		case int:
			attrs = append(attrs, attribute.Int(k, v))
		case int64:
			attrs = append(attrs, attribute.Int64(k, v))
		case float64:
			attrs = append(attrs, attribute.Float64(k, v))
		case bool:
			attrs = append(attrs, attribute.Bool(k, v))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return attrs
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
