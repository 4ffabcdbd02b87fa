// Package job assembles the station pipeline job from its tasklet steps.
package job

import (
	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/internal/step/tasklet"
	"github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
	"github.com/tigerroll/stationcast/pkg/batch/core/job/runner"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
	taskletStep "github.com/tigerroll/stationcast/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// Step names, as recorded on each StepRun.
const (
	FeatureStepName  = "featureStep"
	TrainingStepName = "trainingStep"
)

// PipelineJobParams are the Fx dependencies of NewPipelineJob.
type PipelineJobParams struct {
	fx.In
	Cfg             *config.Config
	RunRepository   repository.RunRepository
	FeatureTasklet  *tasklet.FeatureTasklet
	TrainingTasklet *tasklet.TrainingTasklet
	JobListeners    []port.JobExecutionListener  `group:"job_listeners"`
	StepListeners   []port.StepExecutionListener `group:"step_listeners"`
	MetricRecorder  metrics.MetricRecorder
	Tracer          metrics.Tracer
}

// NewPipelineJob builds the job: featureStep then trainingStep.
func NewPipelineJob(p PipelineJobParams) port.Job {
	newStep := func(name string, t port.Tasklet) port.Step {
		return taskletStep.NewTaskletStep(name, t, p.RunRepository, p.StepListeners, p.MetricRecorder, p.Tracer)
	}
	steps := []port.Step{
		newStep(FeatureStepName, p.FeatureTasklet),
		newStep(TrainingStepName, p.TrainingTasklet),
	}
	name := p.Cfg.Stationcast.Pipeline.JobName
	logger.Debugf("Job '%s' assembled with %d steps.", name, len(steps))
	return runner.NewSequentialJob(name, steps, p.RunRepository, p.JobListeners, p.MetricRecorder, p.Tracer)
}

// Module provides the pipeline port.Job.
var Module = fx.Options(
	fx.Provide(NewPipelineJob),
)
