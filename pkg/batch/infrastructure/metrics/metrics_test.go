package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
)

func finishedStep() (*model.PipelineRun, *model.StepRun) {
	run := model.NewPipelineRun("stationcastJob")
	run.MarkAsStarted()
	step := model.NewStepRun(run, "featureStep")
	step.MarkAsStarted()
	step.ReadCount, step.WriteCount, step.FilterCount = 10, 8, 2
	step.MarkAsCompleted(model.ExitStatusCompleted)
	return run, step
}

func TestPrometheusRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewPrometheusRecorder()
	run, step := finishedStep()

	r.RecordRunStart(ctx, run)
	r.RecordStepEnd(ctx, step)
	r.RecordRowsRead(ctx, "featureStep", 10)
	r.RecordRowsDropped(ctx, "featureStep", "unparseable_timestamp", 2)
	r.RecordRowsDropped(ctx, "featureStep", "unparseable_timestamp", 1)
	r.RecordModelScore(ctx, "220", "r2", 0.75)

	assert.Equal(t, 10.0, testutil.ToFloat64(r.rowsRead.WithLabelValues("featureStep")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rowsDropped.WithLabelValues("featureStep", "unparseable_timestamp")))
	assert.Equal(t, 0.75, testutil.ToFloat64(r.modelScore.WithLabelValues("220", "r2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepStatusCounter.WithLabelValues("featureStep", "COMPLETED")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stepDurationSeconds))
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordRowsWritten(context.Background(), "featureStep", 5)

	path := filepath.Join(t.TempDir(), "stationcast.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `stationcast_rows_written_total{step_name="featureStep"} 5`)
}

func TestOTelMetricRecorder(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	r, err := NewOTelMetricRecorder(mp)
	require.NoError(t, err)

	r.RecordRowsRead(ctx, "featureStep", 4)
	r.RecordRowsRead(ctx, "featureStep", 6)
	_, step := finishedStep()
	r.RecordStepEnd(ctx, step)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	found := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}

	require.Contains(t, found, "stationcast.rows.read")
	sum, ok := found["stationcast.rows.read"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(10), sum.DataPoints[0].Value)
	assert.Contains(t, found, "stationcast.step.duration")
}

func TestOpenTelemetryTracer(t *testing.T) {
	ctx := context.Background()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	tracer := NewOpenTelemetryTracer(tp)
	run, step := finishedStep()

	runCtx, endRun := tracer.StartRunSpan(ctx, run)
	stepCtx, endStep := tracer.StartStepSpan(runCtx, step)
	tracer.RecordEvent(stepCtx, "rows_dropped", map[string]interface{}{"count": 2, "reason": "unparseable_timestamp"})
	tracer.RecordError(stepCtx, "features", errors.New("boom"))
	endStep()
	endRun()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	stepSpan, runSpan := spans[0], spans[1]
	assert.Equal(t, "step featureStep", stepSpan.Name())
	assert.Equal(t, "run stationcastJob", runSpan.Name())
	assert.Equal(t, runSpan.SpanContext().SpanID(), stepSpan.Parent().SpanID())
	assert.Equal(t, codes.Error, stepSpan.Status().Code)

	var names []string
	for _, ev := range stepSpan.Events() {
		names = append(names, ev.Name)
	}
	assert.Contains(t, names, "rows_dropped")
}
