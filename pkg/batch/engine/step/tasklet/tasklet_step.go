package tasklet

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

// TaskletStep is a port.Step that runs a single Tasklet.
type TaskletStep struct {
	id                     string
	tasklet                port.Tasklet
	runRepository          repository.RunRepository
	stepExecutionListeners []port.StepExecutionListener
	metricRecorder         metrics.MetricRecorder
	tracer                 metrics.Tracer
}

// NewTaskletStep creates a new TaskletStep instance.
func NewTaskletStep(
	id string,
	tasklet port.Tasklet,
	runRepository repository.RunRepository,
	stepExecutionListeners []port.StepExecutionListener,
	metricRecorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *TaskletStep {
	return &TaskletStep{
		id:                     id,
		tasklet:                tasklet,
		runRepository:          runRepository,
		stepExecutionListeners: stepExecutionListeners,
		metricRecorder:         metricRecorder,
		tracer:                 tracer,
	}
}

// ID returns the step ID.
func (s *TaskletStep) ID() string {
	return s.id
}

// StepName returns the step name.
func (s *TaskletStep) StepName() string {
	return s.id
}

func (s *TaskletStep) notifyBeforeStep(ctx context.Context, stepRun *model.StepRun) {
	for _, l := range s.stepExecutionListeners {
		l.BeforeStep(ctx, stepRun)
	}
}

func (s *TaskletStep) notifyAfterStep(ctx context.Context, stepRun *model.StepRun) {
	for _, l := range s.stepExecutionListeners {
		l.AfterStep(ctx, stepRun)
	}
}

// Execute runs the Tasklet and persists the StepRun before and after.
// Values the tasklet leaves in its ExecutionContext are merged into the run's context.
func (s *TaskletStep) Execute(ctx context.Context, run *model.PipelineRun, stepRun *model.StepRun) (err error) {
	logger.Infof("TaskletStep '%s' executing.", s.id)

	ctx, finishSpan := s.tracer.StartStepSpan(ctx, stepRun)
	defer finishSpan()

	stepRun.MarkAsStarted()
	if err := s.runRepository.UpdateStep(ctx, stepRun); err != nil {
		return exception.NewBatchError(s.id, "Failed to update StepRun status to STARTED", err, false, false)
	}
	s.metricRecorder.RecordStepStart(ctx, stepRun)

	if err := s.tasklet.SetExecutionContext(ctx, run.ExecutionContext); err != nil {
		stepRun.MarkAsFailed(err)
		s.persist(ctx, stepRun)
		return exception.NewBatchError(s.id, "Failed to set Tasklet ExecutionContext", err, false, false)
	}

	s.notifyBeforeStep(ctx, stepRun)

	exitStatus, err := s.tasklet.Execute(ctx, stepRun)

	if taskletEC, getErr := s.tasklet.GetExecutionContext(ctx); getErr == nil {
		for k, v := range taskletEC {
			run.ExecutionContext.Put(k, v)
		}
	} else {
		logger.Warnf("TaskletStep '%s': Failed to retrieve ExecutionContext from Tasklet: %v", s.id, getErr)
	}

	if closeErr := s.tasklet.Close(ctx); closeErr != nil {
		logger.Errorf("TaskletStep '%s': Failed to close Tasklet: %v", s.id, closeErr)
		if err == nil {
			err = closeErr
		}
	}

	switch {
	case err == nil:
		stepRun.MarkAsCompleted(exitStatus)
	case errors.Is(err, context.Canceled):
		s.tracer.RecordError(ctx, s.id, err)
		stepRun.MarkAsStopped()
	default:
		s.tracer.RecordError(ctx, s.id, err)
		stepRun.MarkAsFailed(err)
	}

	s.notifyAfterStep(ctx, stepRun)
	s.metricRecorder.RecordStepEnd(ctx, stepRun)

	if updateErr := s.persist(ctx, stepRun); updateErr != nil && err == nil {
		err = updateErr
	}

	logger.Infof("TaskletStep '%s' finished. ExitStatus: %s (read %d, written %d, filtered %d, %s)",
		s.id, stepRun.ExitStatus, stepRun.ReadCount, stepRun.WriteCount, stepRun.FilterCount, stepRun.Duration())
	return err
}

// persist writes the final StepRun state. A canceled ctx must not prevent recording a stop.
func (s *TaskletStep) persist(ctx context.Context, stepRun *model.StepRun) error {
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := s.runRepository.UpdateStep(ctx, stepRun); err != nil {
		logger.Errorf("TaskletStep '%s': Failed to update final StepRun state: %v", s.id, err)
		return err
	}
	return nil
}

var _ port.Step = (*TaskletStep)(nil)
