package sql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/stationcast/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/stationcast/pkg/batch/adapter/database/gorm"
	coreAdapter "github.com/tigerroll/stationcast/pkg/batch/core/adapter"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
)

type staticResolver struct {
	conn database.DBConnection
	err  error
}

func (s *staticResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	return s.conn, s.err
}

func (s *staticResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return s.conn, s.err
}

func newMockRepository(t *testing.T) (*SQLRunRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	conn, err := gormadapter.NewGormDBAdapter(gdb, dbconfig.DatabaseConfig{Type: "mysql"}, "runs")
	require.NoError(t, err)
	return NewSQLRunRepository(&staticResolver{conn: conn}, "runs"), mock
}

func TestSQLRunRepository_SaveRun(t *testing.T) {
	repo, mock := newMockRepository(t)
	run := model.NewPipelineRun("stationcastJob")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `pipeline_run`")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRunRepository_UpdateRunBumpsVersion(t *testing.T) {
	repo, mock := newMockRepository(t)
	run := model.NewPipelineRun("stationcastJob")
	run.MarkAsStarted()
	run.MarkAsCompleted()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `pipeline_run` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRun(context.Background(), run))
	assert.Equal(t, 1, run.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRunRepository_UpdateStepStaleVersion(t *testing.T) {
	repo, mock := newMockRepository(t)
	run := model.NewPipelineRun("stationcastJob")
	step := model.NewStepRun(run, "buildFeatures")
	step.Version = 3

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `pipeline_step_run` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStep(context.Background(), step)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrOptimisticLock))
	assert.Equal(t, 3, step.Version)
}

func TestSQLRunRepository_FindLatestRunLoadsSteps(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	runRows := sqlmock.NewRows([]string{"id", "job_name", "start_time", "end_time", "status", "exit_status", "failures", "summary", "create_time", "last_updated", "version"}).
		AddRow("run-1", "stationcastJob", now, now, "COMPLETED", "COMPLETED", "[]", `{"rows_out":4}`, now, now, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `pipeline_run` WHERE job_name = ? ORDER BY create_time DESC")).WillReturnRows(runRows)

	stepRows := sqlmock.NewRows([]string{"id", "pipeline_run_id", "step_name", "start_time", "end_time", "status", "exit_status", "failures", "read_count", "write_count", "filter_count", "summary", "last_updated", "version"}).
		AddRow("step-1", "run-1", "loadEvents", now, now, "COMPLETED", "COMPLETED", "[]", 5, 5, 0, "{}", now, 1).
		AddRow("step-2", "run-1", "buildFeatures", now, now, "COMPLETED", "COMPLETED", "[]", 5, 4, 1, "{}", now, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `pipeline_step_run` WHERE pipeline_run_id = ?")).WillReturnRows(stepRows)

	run, err := repo.FindLatestRun(context.Background(), "stationcastJob")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, float64(4), run.Summary["rows_out"])
	require.Len(t, run.StepRuns, 2)
	assert.Equal(t, "buildFeatures", run.StepRuns[1].StepName)
	assert.Equal(t, 1, run.StepRuns[1].FilterCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRunRepository_FindLatestRunNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `pipeline_run` WHERE job_name = ? ORDER BY create_time DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindLatestRun(context.Background(), "stationcastJob")
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func TestSQLRunRepository_ResolveFailure(t *testing.T) {
	repo := NewSQLRunRepository(&staticResolver{err: errors.New("no route")}, "runs")
	err := repo.SaveRun(context.Background(), model.NewPipelineRun("stationcastJob"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to resolve DB connection 'runs'")
}
