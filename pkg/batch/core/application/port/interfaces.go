// Package port defines the execution contracts between jobs, steps and tasklets.
package port

import (
	"context"

	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
)

// Job is a named, ordered unit of work executed against one PipelineRun.
type Job interface {
	// Run executes the job. The run's status is final when Run returns.
	Run(ctx context.Context, run *model.PipelineRun) error
	// JobName returns the logical name of the job.
	JobName() string
}

// JobRunner drives a Job through its run lifecycle and persists the outcome.
type JobRunner interface {
	Run(ctx context.Context, job Job, run *model.PipelineRun) error
}

// Step executes one stage of a job and records its outcome on stepRun.
type Step interface {
	Execute(ctx context.Context, run *model.PipelineRun, stepRun *model.StepRun) error
	// StepName returns the logical name of the step.
	StepName() string
	// ID returns the unique ID of the step definition.
	ID() string
}

// Tasklet is the business logic of a single-shot step.
type Tasklet interface {
	// Execute runs the tasklet. stepRun carries the counters the tasklet should update.
	Execute(ctx context.Context, stepRun *model.StepRun) (model.ExitStatus, error)
	// Close releases resources.
	Close(ctx context.Context) error
	// SetExecutionContext hands the run's ExecutionContext to the tasklet.
	SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error
	// GetExecutionContext returns the ExecutionContext after execution.
	GetExecutionContext(ctx context.Context) (model.ExecutionContext, error)
}

// StepExecutionListener observes step boundaries.
type StepExecutionListener interface {
	// BeforeStep is called just before a step execution starts.
	BeforeStep(ctx context.Context, stepRun *model.StepRun)
	// AfterStep is called after a step execution completes, regardless of success or failure.
	AfterStep(ctx context.Context, stepRun *model.StepRun)
}

// JobExecutionListener observes job boundaries.
type JobExecutionListener interface {
	BeforeJob(ctx context.Context, run *model.PipelineRun)
	AfterJob(ctx context.Context, run *model.PipelineRun)
}
