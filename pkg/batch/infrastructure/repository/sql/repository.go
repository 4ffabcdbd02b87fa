// Package sql implements the RunRepository on GORM over a named database connection.
package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/database"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// SQLRunRepository implements repository.RunRepository.
type SQLRunRepository struct {
	dbResolver database.DBConnectionResolver
	// dbName is the adapter.database entry holding run history.
	dbName string
}

// NewSQLRunRepository creates a repository bound to the connection named dbName.
func NewSQLRunRepository(dbResolver database.DBConnectionResolver, dbName string) *SQLRunRepository {
	return &SQLRunRepository{dbResolver: dbResolver, dbName: dbName}
}

func (r *SQLRunRepository) session(ctx context.Context) (*gorm.DB, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewBatchError("SQLRunRepository", fmt.Sprintf("Failed to resolve DB connection '%s'", r.dbName), err, false, true)
	}
	return conn.GormDB().WithContext(ctx), nil
}

func (r *SQLRunRepository) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	const op = "SQLRunRepository.SaveRun"
	db, err := r.session(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(fromDomainRun(run)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save PipelineRun (ID: %s)", run.ID), err, false, true)
	}
	return nil
}

func (r *SQLRunRepository) UpdateRun(ctx context.Context, run *model.PipelineRun) error {
	const op = "SQLRunRepository.UpdateRun"
	db, err := r.session(ctx)
	if err != nil {
		return err
	}

	originalVersion := run.Version
	entity := fromDomainRun(run)
	entity.Version = originalVersion + 1

	res := db.Model(&PipelineRunEntity{}).
		Where("id = ? AND version = ?", run.ID, originalVersion).
		Updates(entity.updateColumns())
	if res.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update PipelineRun (ID: %s)", run.ID), res.Error, false, true)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: PipelineRun (ID: %s) with version %d: %w", op, run.ID, originalVersion, repository.ErrOptimisticLock)
	}
	run.Version = entity.Version
	return nil
}

func (r *SQLRunRepository) SaveStep(ctx context.Context, step *model.StepRun) error {
	const op = "SQLRunRepository.SaveStep"
	db, err := r.session(ctx)
	if err != nil {
		return err
	}
	if err := db.Create(fromDomainStep(step)).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save StepRun (ID: %s)", step.ID), err, false, true)
	}
	return nil
}

func (r *SQLRunRepository) UpdateStep(ctx context.Context, step *model.StepRun) error {
	const op = "SQLRunRepository.UpdateStep"
	db, err := r.session(ctx)
	if err != nil {
		return err
	}

	originalVersion := step.Version
	entity := fromDomainStep(step)
	entity.Version = originalVersion + 1

	res := db.Model(&StepRunEntity{}).
		Where("id = ? AND version = ?", step.ID, originalVersion).
		Updates(entity.updateColumns())
	if res.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update StepRun (ID: %s)", step.ID), res.Error, false, true)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: StepRun (ID: %s) with version %d: %w", op, step.ID, originalVersion, repository.ErrOptimisticLock)
	}
	step.Version = entity.Version
	return nil
}

func (r *SQLRunRepository) FindLatestRun(ctx context.Context, jobName string) (*model.PipelineRun, error) {
	db, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	var entities []PipelineRunEntity
	if err := db.Where("job_name = ?", jobName).Order("create_time DESC").Limit(1).Find(&entities).Error; err != nil {
		return nil, exception.NewBatchError("SQLRunRepository.FindLatestRun", fmt.Sprintf("failed to find latest PipelineRun for job '%s'", jobName), err, false, true)
	}
	if len(entities) == 0 {
		return nil, repository.ErrRunNotFound
	}
	return r.withSteps(db, &entities[0])
}

func (r *SQLRunRepository) withSteps(db *gorm.DB, entity *PipelineRunEntity) (*model.PipelineRun, error) {
	run := toDomainRun(entity)
	var steps []StepRunEntity
	err := db.Where("pipeline_run_id = ?", run.ID).Order("start_time").Find(&steps).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, exception.NewBatchError("SQLRunRepository", fmt.Sprintf("failed to load StepRuns for PipelineRun %s", run.ID), err, false, true)
	}
	for i := range steps {
		run.StepRuns = append(run.StepRuns, toDomainStep(&steps[i]))
	}
	return run, nil
}

// Close is a no-op; connections belong to the resolver.
func (r *SQLRunRepository) Close() error { return nil }

var _ repository.RunRepository = (*SQLRunRepository)(nil)
