package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
)

// MetricRecorder records pipeline metrics independently of the backend
// (Prometheus, OpenTelemetry or nothing at all).
type MetricRecorder interface {
	// RecordRunStart records the start of a PipelineRun.
	RecordRunStart(ctx context.Context, run *model.PipelineRun)
	// RecordRunEnd records the end of a PipelineRun, labelled by its final status.
	RecordRunEnd(ctx context.Context, run *model.PipelineRun)
	// RecordStepStart records the start of a StepRun.
	RecordStepStart(ctx context.Context, step *model.StepRun)
	// RecordStepEnd records the end of a StepRun and its duration.
	RecordStepEnd(ctx context.Context, step *model.StepRun)

	// RecordRowsRead records count input rows consumed by stepName.
	RecordRowsRead(ctx context.Context, stepName string, count int)
	// RecordRowsWritten records count rows produced by stepName.
	RecordRowsWritten(ctx context.Context, stepName string, count int)
	// RecordRowsDropped records count rows discarded by stepName.
	// reason is a short label such as "unparseable_timestamp" or "missing_feature".
	RecordRowsDropped(ctx context.Context, stepName string, reason string, count int)

	// RecordModelScore records an evaluation score (mse, r2) of the model trained for station.
	RecordModelScore(ctx context.Context, station string, score string, value float64)

	// RecordDuration records the execution time of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
