package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
)

func TestInMemoryRunRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRunRepository()

	run := model.NewPipelineRun("stationcastJob")
	require.NoError(t, repo.SaveRun(ctx, run))

	step := model.NewStepRun(run, "buildFeatures")
	require.NoError(t, repo.SaveStep(ctx, step))

	step.MarkAsStarted()
	step.ReadCount = 5
	step.MarkAsCompleted(model.ExitStatusCompleted)
	require.NoError(t, repo.UpdateStep(ctx, step))
	assert.Equal(t, 1, step.Version)

	run.MarkAsStarted()
	require.NoError(t, repo.UpdateRun(ctx, run))

	found, err := repo.FindLatestRun(ctx, "stationcastJob")
	require.NoError(t, err)
	assert.Equal(t, model.StatusStarted, found.Status)
	require.Len(t, found.StepRuns, 1)
	assert.Equal(t, 5, found.StepRuns[0].ReadCount)
	assert.Equal(t, model.StatusCompleted, found.StepRuns[0].Status)
}

func TestInMemoryRunRepository_StaleUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRunRepository()
	run := model.NewPipelineRun("stationcastJob")
	require.NoError(t, repo.SaveRun(ctx, run))

	stale := *run
	require.NoError(t, repo.UpdateRun(ctx, run))
	assert.ErrorIs(t, repo.UpdateRun(ctx, &stale), repository.ErrOptimisticLock)
}

func TestInMemoryRunRepository_FindLatestRun(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRunRepository()

	older := model.NewPipelineRun("stationcastJob")
	older.CreateTime = time.Now().Add(-time.Hour)
	newer := model.NewPipelineRun("stationcastJob")
	other := model.NewPipelineRun("otherJob")
	for _, r := range []*model.PipelineRun{older, newer, other} {
		require.NoError(t, repo.SaveRun(ctx, r))
	}

	latest, err := repo.FindLatestRun(ctx, "stationcastJob")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	_, err = repo.FindLatestRun(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestInMemoryRunRepository_StepRequiresRun(t *testing.T) {
	repo := NewInMemoryRunRepository()
	step := &model.StepRun{ID: "s", PipelineRunID: "nope"}
	assert.ErrorIs(t, repo.SaveStep(context.Background(), step), repository.ErrRunNotFound)
}
