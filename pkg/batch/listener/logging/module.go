package logging

import "go.uber.org/fx"

// JobListenerGroup collects every port.JobExecutionListener.
const JobListenerGroup = `group:"job_listeners"`

// StepListenerGroup collects every port.StepExecutionListener.
const StepListenerGroup = `group:"step_listeners"`

// Module contributes the logging listeners to the listener groups.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLoggingJobListener,
		fx.ResultTags(JobListenerGroup),
	)),
	fx.Provide(fx.Annotate(
		NewLoggingStepListener,
		fx.ResultTags(StepListenerGroup),
	)),
)
