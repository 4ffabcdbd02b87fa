package tasklet

import (
	"context"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/training"
	"github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// ReportKey is the ExecutionContext key holding the *training.Report.
const ReportKey = "training.report"

// ModelTrainer fits and publishes the departure model.
type ModelTrainer interface {
	Train(ctx context.Context, tbl *table.Table) (*training.Report, error)
	Publish(ctx context.Context, report *training.Report) (string, error)
}

// TrainingTasklet trains on the feature table built by FeatureTasklet.
type TrainingTasklet struct {
	trainer        ModelTrainer
	metricRecorder metrics.MetricRecorder
	ec             model.ExecutionContext
}

func NewTrainingTasklet(trainer ModelTrainer, metricRecorder metrics.MetricRecorder) *TrainingTasklet {
	return &TrainingTasklet{
		trainer:        trainer,
		metricRecorder: metricRecorder,
		ec:             model.NewExecutionContext(),
	}
}

// Execute implements port.Tasklet.
func (t *TrainingTasklet) Execute(ctx context.Context, stepRun *model.StepRun) (model.ExitStatus, error) {
	v, ok := t.ec.Get(FeatureTableKey)
	tbl, isTable := v.(*table.Table)
	if !ok || !isTable {
		return model.ExitStatusFailed, exception.NewBatchErrorf("tasklet", "no feature table in execution context under '%s'", FeatureTableKey)
	}

	report, err := t.trainer.Train(ctx, tbl)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	stepRun.ReadCount = report.TrainRows + report.TestRows + report.DroppedRows
	stepRun.FilterCount = report.DroppedRows
	if report.DroppedRows > 0 {
		t.metricRecorder.RecordRowsDropped(ctx, stepRun.StepName, "missing_value", report.DroppedRows)
	}
	t.metricRecorder.RecordModelScore(ctx, report.StationID, "mse", report.MSE)
	t.metricRecorder.RecordModelScore(ctx, report.StationID, "r2", report.R2)
	t.ec.Put(ReportKey, report)

	stepRun.Summary = model.Summary{
		"station_id": report.StationID,
		"train_rows": report.TrainRows,
		"test_rows":  report.TestRows,
		"mse":        report.MSE,
		"r2":         report.R2,
	}

	object, err := t.trainer.Publish(ctx, report)
	if err != nil {
		return model.ExitStatusFailed, err
	}
	if object != "" {
		stepRun.WriteCount = 1
		stepRun.Summary["report"] = object
	}
	return model.ExitStatusCompleted, nil
}

func (t *TrainingTasklet) Close(ctx context.Context) error {
	return nil
}

func (t *TrainingTasklet) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		t.ec = ec
	}
	return nil
}

func (t *TrainingTasklet) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return t.ec, nil
}

var _ port.Tasklet = (*TrainingTasklet)(nil)
