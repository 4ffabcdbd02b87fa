// Package repository defines persistence for pipeline run metadata.
package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
)

// ErrRunNotFound is returned when no pipeline run matches the lookup.
var ErrRunNotFound = errors.New("pipeline run not found")

// ErrOptimisticLock is returned when an update targets a stale version.
var ErrOptimisticLock = errors.New("optimistic locking failure")

// RunRepository persists PipelineRun and StepRun records.
type RunRepository interface {
	SaveRun(ctx context.Context, run *model.PipelineRun) error
	// UpdateRun increments run.Version on success.
	UpdateRun(ctx context.Context, run *model.PipelineRun) error
	SaveStep(ctx context.Context, step *model.StepRun) error
	// UpdateStep increments step.Version on success.
	UpdateStep(ctx context.Context, step *model.StepRun) error
	// FindLatestRun returns the most recently created run of jobName with its step runs.
	FindLatestRun(ctx context.Context, jobName string) (*model.PipelineRun, error)

	Close() error
}
