package tasklet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/internal/step/writer"
	"github.com/tigerroll/stationcast/internal/training"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
)

type mockLoader struct{ mock.Mock }

func (m *mockLoader) Load(ctx context.Context, in config.InputConfig) (*table.Table, error) {
	args := m.Called(in)
	tbl, _ := args.Get(0).(*table.Table)
	return tbl, args.Error(1)
}

type mockWriter struct{ mock.Mock }

func (m *mockWriter) Write(ctx context.Context, tbl *table.Table, out config.OutputConfig) (*writer.WriteResult, error) {
	args := m.Called(tbl.NumRows(), out)
	res, _ := args.Get(0).(*writer.WriteResult)
	return res, args.Error(1)
}

type mockTrainer struct{ mock.Mock }

func (m *mockTrainer) Train(ctx context.Context, tbl *table.Table) (*training.Report, error) {
	args := m.Called(tbl)
	r, _ := args.Get(0).(*training.Report)
	return r, args.Error(1)
}

func (m *mockTrainer) Publish(ctx context.Context, report *training.Report) (string, error) {
	args := m.Called(report)
	return args.String(0), args.Error(1)
}

type recordingRecorder struct {
	metrics.NoOpMetricRecorder
	dropped map[string]int
	scores  map[string]float64
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{dropped: map[string]int{}, scores: map[string]float64{}}
}

func (r *recordingRecorder) RecordRowsDropped(ctx context.Context, step, reason string, count int) {
	r.dropped[reason] += count
}

func (r *recordingRecorder) RecordModelScore(ctx context.Context, station, score string, value float64) {
	r.scores[station+"/"+score] = value
}

func rawTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.NewStringColumn(features.ColStationID, []string{"220", "220", "220"}),
		table.NewStringColumn(features.ColTimestamp, []string{"2024-03-04 08:00:00", "garbage", "2024-03-04 09:00:00"}),
		table.NewFloat64Column(features.ColDeparture, []float64{5, 6, 7}, nil),
		table.NewFloat64Column(features.ColPrecipitation, []float64{0, 0, 0}, nil),
		table.NewFloat64Column(features.ColTemperature, []float64{1, 2, 3}, nil),
		table.NewBoolColumn(features.ColIsHoliday, []bool{false, false, false}),
	)
	require.NoError(t, err)
	return tbl
}

func pipelineConfig(storageRef string) *config.Config {
	cfg := config.NewConfig()
	cfg.Stationcast.Pipeline.Output.StorageRef = storageRef
	return cfg
}

func TestFeatureTasklet_BuildsAndWrites(t *testing.T) {
	cfg := pipelineConfig("lake")
	loader := &mockLoader{}
	loader.On("Load", cfg.Stationcast.Pipeline.Input).Return(rawTable(t), nil)
	w := &mockWriter{}
	w.On("Write", 2, cfg.Stationcast.Pipeline.Output).
		Return(&writer.WriteResult{Rows: 2, Objects: []string{"features/station_id=220/a.parquet"}}, nil)
	rec := newRecordingRecorder()

	tk := NewFeatureTasklet(cfg, loader, features.NewBuilder(), w, rec)
	ec := model.NewExecutionContext()
	require.NoError(t, tk.SetExecutionContext(context.Background(), ec))

	stepRun := &model.StepRun{StepName: "featureStep"}
	exit, err := tk.Execute(context.Background(), stepRun)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)
	assert.Equal(t, 3, stepRun.ReadCount)
	assert.Equal(t, 1, stepRun.FilterCount)
	assert.Equal(t, 2, stepRun.WriteCount)
	assert.Equal(t, []string{"features/station_id=220/a.parquet"}, stepRun.Summary["objects"])
	assert.Equal(t, 1, rec.dropped["timestamp_parse"])

	v, ok := ec.Get(FeatureTableKey)
	require.True(t, ok)
	built := v.(*table.Table)
	assert.Equal(t, 2, built.NumRows())
	assert.True(t, built.Has(features.ColHourXWeekend))
	loader.AssertExpectations(t)
	w.AssertExpectations(t)
}

func TestFeatureTasklet_SkipsWriteWithoutStorage(t *testing.T) {
	cfg := pipelineConfig("")
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(rawTable(t), nil)
	w := &mockWriter{}

	tk := NewFeatureTasklet(cfg, loader, features.NewBuilder(), w, metrics.NewNoOpMetricRecorder())
	stepRun := &model.StepRun{}
	exit, err := tk.Execute(context.Background(), stepRun)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)
	assert.Equal(t, 2, stepRun.WriteCount)
	w.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestFeatureTasklet_LoadFailure(t *testing.T) {
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(nil, errors.New("no such file"))

	tk := NewFeatureTasklet(pipelineConfig(""), loader, features.NewBuilder(), &mockWriter{}, metrics.NewNoOpMetricRecorder())
	exit, err := tk.Execute(context.Background(), &model.StepRun{})
	assert.EqualError(t, err, "no such file")
	assert.Equal(t, model.ExitStatusFailed, exit)
}

func TestFeatureTasklet_WriteFailureKeepsCounts(t *testing.T) {
	cfg := pipelineConfig("lake")
	loader := &mockLoader{}
	loader.On("Load", mock.Anything).Return(rawTable(t), nil)
	w := &mockWriter{}
	w.On("Write", mock.Anything, mock.Anything).Return(&writer.WriteResult{Rows: 0}, errors.New("bucket gone"))

	tk := NewFeatureTasklet(cfg, loader, features.NewBuilder(), w, metrics.NewNoOpMetricRecorder())
	stepRun := &model.StepRun{}
	exit, err := tk.Execute(context.Background(), stepRun)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	assert.Equal(t, model.ExitStatusFailed, exit)
	assert.Equal(t, 3, stepRun.ReadCount)
	assert.Equal(t, 0, stepRun.WriteCount)
}

func TestTrainingTasklet_TrainsOnFeatureTable(t *testing.T) {
	tbl := rawTable(t)
	report := &training.Report{StationID: "220", TrainRows: 8, TestRows: 2, DroppedRows: 1}
	report.MSE, report.R2 = 1.5, 0.75

	trainer := &mockTrainer{}
	trainer.On("Train", tbl).Return(report, nil)
	trainer.On("Publish", report).Return("reports/report.json", nil)
	rec := newRecordingRecorder()

	tk := NewTrainingTasklet(trainer, rec)
	ec := model.NewExecutionContext()
	ec.Put(FeatureTableKey, tbl)
	require.NoError(t, tk.SetExecutionContext(context.Background(), ec))

	stepRun := &model.StepRun{StepName: "trainingStep"}
	exit, err := tk.Execute(context.Background(), stepRun)
	require.NoError(t, err)
	assert.Equal(t, model.ExitStatusCompleted, exit)
	assert.Equal(t, 11, stepRun.ReadCount)
	assert.Equal(t, 1, stepRun.FilterCount)
	assert.Equal(t, 1, stepRun.WriteCount)
	assert.Equal(t, "reports/report.json", stepRun.Summary["report"])
	assert.Equal(t, 1.5, rec.scores["220/mse"])
	assert.Equal(t, 0.75, rec.scores["220/r2"])
	assert.Equal(t, 1, rec.dropped["missing_value"])

	got, ok := ec.Get(ReportKey)
	require.True(t, ok)
	assert.Same(t, report, got)
	trainer.AssertExpectations(t)
}

func TestTrainingTasklet_RequiresFeatureTable(t *testing.T) {
	trainer := &mockTrainer{}
	tk := NewTrainingTasklet(trainer, metrics.NewNoOpMetricRecorder())
	exit, err := tk.Execute(context.Background(), &model.StepRun{})
	require.Error(t, err)
	assert.Equal(t, model.ExitStatusFailed, exit)
	trainer.AssertNotCalled(t, "Train", mock.Anything)
}

func TestTrainingTasklet_TrainFailure(t *testing.T) {
	tbl := rawTable(t)
	trainer := &mockTrainer{}
	trainer.On("Train", tbl).Return(nil, errors.New("singular"))

	tk := NewTrainingTasklet(trainer, metrics.NewNoOpMetricRecorder())
	ec := model.NewExecutionContext()
	ec.Put(FeatureTableKey, tbl)
	require.NoError(t, tk.SetExecutionContext(context.Background(), ec))

	exit, err := tk.Execute(context.Background(), &model.StepRun{})
	assert.EqualError(t, err, "singular")
	assert.Equal(t, model.ExitStatusFailed, exit)
	trainer.AssertNotCalled(t, "Publish", mock.Anything)
}
