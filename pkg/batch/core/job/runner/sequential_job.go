package runner

import (
	"context"
	"errors"

	port "github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	model "github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/stationcast/pkg/batch/core/metrics"
	exception "github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// SequentialJob is a port.Job that runs its steps in order and stops at the first failure.
type SequentialJob struct {
	name           string
	steps          []port.Step
	runRepository  repository.RunRepository
	jobListeners   []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

var _ port.Job = (*SequentialJob)(nil)

// NewSequentialJob creates a new instance of SequentialJob.
func NewSequentialJob(
	name string,
	steps []port.Step,
	runRepository repository.RunRepository,
	jobListeners []port.JobExecutionListener,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *SequentialJob {
	return &SequentialJob{
		name:           name,
		steps:          steps,
		runRepository:  runRepository,
		jobListeners:   jobListeners,
		metricRecorder: metricRecorder,
		tracer:         tracer,
	}
}

// JobName returns the job name.
func (j *SequentialJob) JobName() string {
	return j.name
}

// Steps returns the steps in execution order.
func (j *SequentialJob) Steps() []port.Step {
	return append([]port.Step(nil), j.steps...)
}

func (j *SequentialJob) notifyBeforeJob(ctx context.Context, run *model.PipelineRun) {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, run)
	}
}

func (j *SequentialJob) notifyAfterJob(ctx context.Context, run *model.PipelineRun) {
	for _, l := range j.jobListeners {
		l.AfterJob(ctx, run)
	}
}

// Run executes every step in order. Context cancellation is checked between steps
// and marks the run STOPPED; a step error marks it FAILED.
func (j *SequentialJob) Run(ctx context.Context, run *model.PipelineRun) error {
	logger.Infof("Starting Job '%s' (Run ID: %s).", j.name, run.ID)

	ctx, finishSpan := j.tracer.StartRunSpan(ctx, run)
	defer finishSpan()

	j.metricRecorder.RecordRunStart(ctx, run)
	j.notifyBeforeJob(ctx, run)

	defer func() {
		j.notifyAfterJob(ctx, run)
		j.metricRecorder.RecordRunEnd(ctx, run)
		logger.Infof("Job '%s' (Run ID: %s) finished. Final Status: %s, Exit Status: %s",
			j.name, run.ID, run.Status, run.ExitStatus)
		for _, sr := range run.StepRuns {
			logger.Debugf("  StepRun %s: status=%s read=%d write=%d filter=%d duration=%s",
				sr.StepName, sr.Status, sr.ReadCount, sr.WriteCount, sr.FilterCount, sr.Duration())
		}
	}()

	for _, step := range j.steps {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Context cancelled, interrupting execution of Job '%s': %v", j.name, err)
			run.MarkAsStopped()
			run.Failures = append(run.Failures, err.Error())
			j.tracer.RecordError(ctx, "job_runner", err)
			return err
		}

		stepRun := model.NewStepRun(run, step.StepName())
		if err := j.runRepository.SaveStep(ctx, stepRun); err != nil {
			logger.Errorf("Job '%s': Failed to save StepRun (ID: %s): %v", j.name, stepRun.ID, err)
			run.MarkAsFailed(err)
			j.tracer.RecordError(ctx, "job_runner", err)
			return exception.NewBatchError(j.name, "Error saving new StepRun", err, false, false)
		}

		if err := step.Execute(ctx, run, stepRun); err != nil {
			logger.Errorf("Job '%s': Error occurred during execution of step '%s': %v", j.name, step.StepName(), err)
			j.tracer.RecordError(ctx, "job_runner", err)
			if errors.Is(err, context.Canceled) {
				run.MarkAsStopped()
				run.Failures = append(run.Failures, err.Error())
			} else {
				run.MarkAsFailed(err)
			}
			return err
		}
		logger.Infof("Job '%s': Step '%s' completed successfully. ExitStatus: %s", j.name, step.StepName(), stepRun.ExitStatus)
	}

	run.MarkAsCompleted()
	return nil
}
