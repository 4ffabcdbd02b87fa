package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/stationcast"

// OTelMetricRecorder is an OpenTelemetry implementation of metrics.MetricRecorder.
type OTelMetricRecorder struct {
	runs              otelmetric.Int64Counter
	steps             otelmetric.Int64Counter
	stepDuration      otelmetric.Float64Histogram
	rowsRead          otelmetric.Int64Counter
	rowsWritten       otelmetric.Int64Counter
	rowsDropped       otelmetric.Int64Counter
	modelScore        otelmetric.Float64Gauge
	operationDuration otelmetric.Float64Histogram
}

// NewOTelMetricRecorder creates the instruments on a meter from provider.
func NewOTelMetricRecorder(provider otelmetric.MeterProvider) (*OTelMetricRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelMetricRecorder{}
	var err error

	if r.runs, err = meter.Int64Counter("stationcast.runs",
		otelmetric.WithDescription("Pipeline runs by status.")); err != nil {
		return nil, err
	}
	if r.steps, err = meter.Int64Counter("stationcast.steps",
		otelmetric.WithDescription("Pipeline steps by status.")); err != nil {
		return nil, err
	}
	if r.stepDuration, err = meter.Float64Histogram("stationcast.step.duration",
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.rowsRead, err = meter.Int64Counter("stationcast.rows.read"); err != nil {
		return nil, err
	}
	if r.rowsWritten, err = meter.Int64Counter("stationcast.rows.written"); err != nil {
		return nil, err
	}
	if r.rowsDropped, err = meter.Int64Counter("stationcast.rows.dropped"); err != nil {
		return nil, err
	}
	if r.modelScore, err = meter.Float64Gauge("stationcast.model.score"); err != nil {
		return nil, err
	}
	if r.operationDuration, err = meter.Float64Histogram("stationcast.operation.duration",
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTelMetricRecorder) RecordRunStart(ctx context.Context, run *model.PipelineRun) {
	r.runs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("job_name", run.JobName),
		attribute.String("status", run.Status.String()),
	))
}

func (r *OTelMetricRecorder) RecordRunEnd(ctx context.Context, run *model.PipelineRun) {
	r.runs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("job_name", run.JobName),
		attribute.String("status", run.Status.String()),
	))
}

func (r *OTelMetricRecorder) RecordStepStart(ctx context.Context, step *model.StepRun) {
	r.steps.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("step_name", step.StepName),
		attribute.String("status", step.Status.String()),
	))
}

func (r *OTelMetricRecorder) RecordStepEnd(ctx context.Context, step *model.StepRun) {
	attrs := otelmetric.WithAttributes(
		attribute.String("step_name", step.StepName),
		attribute.String("status", step.Status.String()),
	)
	r.steps.Add(ctx, 1, attrs)
	if step.EndTime != nil {
		r.stepDuration.Record(ctx, step.Duration().Seconds(), attrs)
	}
}

func (r *OTelMetricRecorder) RecordRowsRead(ctx context.Context, stepName string, count int) {
	r.rowsRead.Add(ctx, int64(count), otelmetric.WithAttributes(attribute.String("step_name", stepName)))
}

func (r *OTelMetricRecorder) RecordRowsWritten(ctx context.Context, stepName string, count int) {
	r.rowsWritten.Add(ctx, int64(count), otelmetric.WithAttributes(attribute.String("step_name", stepName)))
}

func (r *OTelMetricRecorder) RecordRowsDropped(ctx context.Context, stepName string, reason string, count int) {
	r.rowsDropped.Add(ctx, int64(count), otelmetric.WithAttributes(
		attribute.String("step_name", stepName),
		attribute.String("reason", reason),
	))
}

func (r *OTelMetricRecorder) RecordModelScore(ctx context.Context, station string, score string, value float64) {
	r.modelScore.Record(ctx, value, otelmetric.WithAttributes(
		attribute.String("station_id", station),
		attribute.String("score", score),
	))
}

func (r *OTelMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := []attribute.KeyValue{attribute.String("operation", name)}
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operationDuration.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OTelMetricRecorder)(nil)
