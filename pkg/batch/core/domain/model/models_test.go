package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

func TestPipelineRun_Lifecycle(t *testing.T) {
	run := NewPipelineRun("stationcastJob")
	require.NotEmpty(t, run.ID)
	assert.Equal(t, StatusStarting, run.Status)

	run.MarkAsStarted()
	assert.Equal(t, StatusStarted, run.Status)

	run.MarkAsCompleted()
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, ExitStatusCompleted, run.ExitStatus)
	assert.NotNil(t, run.EndTime)
	assert.True(t, run.Status.IsFinished())

	assert.Error(t, run.TransitionTo(StatusStarted))
}

func TestPipelineRun_FailureDeduplication(t *testing.T) {
	run := NewPipelineRun("job")
	run.MarkAsStarted()

	cause := exception.NewBatchError("features", "missing column", errors.New("departure"), false, false)
	run.MarkAsFailed(cause)
	run.MarkAsFailed(cause)

	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, FailureList{"missing column"}, run.Failures)
}

func TestStepRun_Lifecycle(t *testing.T) {
	run := NewPipelineRun("job")
	step := NewStepRun(run, "featureStep")

	require.Len(t, run.StepRuns, 1)
	assert.Equal(t, run.ID, step.PipelineRunID)
	assert.Zero(t, step.Duration())

	step.MarkAsStarted()
	step.MarkAsCompleted(ExitStatusNoOp)

	assert.Equal(t, StatusCompleted, step.Status)
	assert.Equal(t, ExitStatusNoOp, step.ExitStatus)
	assert.GreaterOrEqual(t, step.Duration().Nanoseconds(), int64(0))
}

func TestFailureList_ValueScan(t *testing.T) {
	v, err := FailureList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var fl FailureList
	require.NoError(t, fl.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, FailureList{"a", "b"}, fl)

	require.NoError(t, fl.Scan(nil))
	assert.Empty(t, fl)

	assert.Error(t, fl.Scan(42))
}

func TestSummary_ValueScan(t *testing.T) {
	v, err := Summary{"dropped_rows": 3}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"dropped_rows":3}`, v.(string))

	var s Summary
	require.NoError(t, s.Scan(`{"r2":0.5}`))
	assert.Equal(t, 0.5, s["r2"])
}

func TestExecutionContext(t *testing.T) {
	ec := NewExecutionContext()
	ec.Put("rows", 12)
	ec.Put("path", "in.parquet")

	n, ok := ec.GetInt("rows")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	s, ok := ec.GetString("path")
	assert.True(t, ok)
	assert.Equal(t, "in.parquet", s)

	_, ok = ec.GetString("rows")
	assert.False(t, ok)
}
