package runner

import (
	"context"
	"errors"
	"fmt"

	port "github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
	logger "github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// SimpleJobRunner persists a PipelineRun around a call to Job.Run.
type SimpleJobRunner struct {
	runRepository repository.RunRepository
}

// NewSimpleJobRunner creates an instance of SimpleJobRunner.
func NewSimpleJobRunner(repo repository.RunRepository) *SimpleJobRunner {
	return &SimpleJobRunner{runRepository: repo}
}

// Run saves run, marks it STARTED, executes job and stores the final state.
// The returned error is the job's error; repository failures after the job ran are only logged.
func (r *SimpleJobRunner) Run(ctx context.Context, job port.Job, run *model.PipelineRun) error {
	r.closeAbandonedRun(ctx, job.JobName())

	if err := r.runRepository.SaveRun(ctx, run); err != nil {
		run.MarkAsFailed(err)
		return err
	}

	if run.Status == model.StatusStarting {
		run.MarkAsStarted()
		if err := r.runRepository.UpdateRun(ctx, run); err != nil {
			logger.Errorf("JobRunner: Failed to update PipelineRun (ID: %s) status to STARTED: %v", run.ID, err)
		}
	}

	err := job.Run(ctx, run)

	if err != nil {
		if !run.Status.IsFinished() {
			run.MarkAsFailed(err)
		}
	} else if !run.Status.IsFinished() {
		run.MarkAsCompleted()
	}

	// The run's own context may be canceled by now.
	if updateErr := r.runRepository.UpdateRun(context.WithoutCancel(ctx), run); updateErr != nil {
		logger.Errorf("JobRunner: Failed to update final PipelineRun (ID: %s) state: %v", run.ID, updateErr)
	}
	return err
}

// closeAbandonedRun marks the latest run of jobName FAILED when it never finished,
// which happens when a previous process died mid-run.
func (r *SimpleJobRunner) closeAbandonedRun(ctx context.Context, jobName string) {
	previous, err := r.runRepository.FindLatestRun(ctx, jobName)
	if err != nil {
		if !errors.Is(err, repository.ErrRunNotFound) {
			logger.Warnf("JobRunner: Failed to look up the previous run of job '%s': %v", jobName, err)
		}
		return
	}
	if previous.Status.IsFinished() {
		logger.Infof("JobRunner: Previous run of job '%s' (ID: %s) ended %s.", jobName, previous.ID, previous.Status)
		return
	}
	logger.Warnf("JobRunner: Previous run of job '%s' (ID: %s) is still %s. Marking it FAILED.", jobName, previous.ID, previous.Status)
	previous.MarkAsFailed(fmt.Errorf("run abandoned while %s", previous.Status))
	if err := r.runRepository.UpdateRun(ctx, previous); err != nil {
		logger.Errorf("JobRunner: Failed to close abandoned PipelineRun (ID: %s): %v", previous.ID, err)
	}
}

var _ port.JobRunner = (*SimpleJobRunner)(nil)
