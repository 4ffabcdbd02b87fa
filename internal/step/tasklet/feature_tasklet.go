// Package tasklet holds the business logic of the pipeline steps.
package tasklet

import (
	"context"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/internal/step/writer"
	"github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// FeatureTableKey is the ExecutionContext key holding the built *table.Table.
const FeatureTableKey = "features.table"

// TableLoader reads the raw table described by an InputConfig.
type TableLoader interface {
	Load(ctx context.Context, in config.InputConfig) (*table.Table, error)
}

// FeatureTableWriter persists a built feature table.
type FeatureTableWriter interface {
	Write(ctx context.Context, tbl *table.Table, out config.OutputConfig) (*writer.WriteResult, error)
}

// FeatureTasklet loads the raw events, derives the features and writes the feature table.
type FeatureTasklet struct {
	cfg            config.PipelineConfig
	loader         TableLoader
	builder        *features.Builder
	writer         FeatureTableWriter
	metricRecorder metrics.MetricRecorder
	ec             model.ExecutionContext
}

// NewFeatureTasklet creates a FeatureTasklet for the pipeline section of cfg.
func NewFeatureTasklet(
	cfg *config.Config,
	loader TableLoader,
	builder *features.Builder,
	writer FeatureTableWriter,
	metricRecorder metrics.MetricRecorder,
) *FeatureTasklet {
	return &FeatureTasklet{
		cfg:            cfg.Stationcast.Pipeline,
		loader:         loader,
		builder:        builder,
		writer:         writer,
		metricRecorder: metricRecorder,
		ec:             model.NewExecutionContext(),
	}
}

// Execute implements port.Tasklet. The built table is left in the ExecutionContext for later steps.
func (t *FeatureTasklet) Execute(ctx context.Context, stepRun *model.StepRun) (model.ExitStatus, error) {
	raw, err := t.loader.Load(ctx, t.cfg.Input)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	stepRun.ReadCount = raw.NumRows()
	t.metricRecorder.RecordRowsRead(ctx, stepRun.StepName, raw.NumRows())

	built, stats, err := t.builder.BuildWithStats(raw)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	stepRun.FilterCount = stats.DroppedRows
	if stats.DroppedRows > 0 {
		logger.Warnf("Dropped %d of %d rows with unparseable timestamps.", stats.DroppedRows, stats.InputRows)
		t.metricRecorder.RecordRowsDropped(ctx, stepRun.StepName, "timestamp_parse", stats.DroppedRows)
	}
	t.ec.Put(FeatureTableKey, built)

	summary := model.Summary{
		"input_rows":   stats.InputRows,
		"dropped_rows": stats.DroppedRows,
		"output_rows":  stats.OutputRows,
		"stations":     stats.Stations,
	}
	stepRun.Summary = summary

	if t.cfg.Output.StorageRef == "" {
		logger.Infof("No output storage configured; feature table kept in memory only.")
		stepRun.WriteCount = built.NumRows()
		return model.ExitStatusCompleted, nil
	}
	if err := ctx.Err(); err != nil {
		return model.ExitStatusStopped, err
	}
	res, err := t.writer.Write(ctx, built, t.cfg.Output)
	if res != nil {
		stepRun.WriteCount = res.Rows
		summary["objects"] = res.Objects
		t.metricRecorder.RecordRowsWritten(ctx, stepRun.StepName, res.Rows)
	}
	if err != nil {
		return model.ExitStatusFailed, exception.NewBatchError("tasklet", "failed to write feature table", err, false, exception.IsTemporary(err))
	}
	return model.ExitStatusCompleted, nil
}

func (t *FeatureTasklet) Close(ctx context.Context) error {
	return nil
}

// SetExecutionContext adopts the run's ExecutionContext so the feature table is visible to later steps.
func (t *FeatureTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		t.ec = ec
	}
	return nil
}

func (t *FeatureTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}

var _ port.Tasklet = (*FeatureTasklet)(nil)
