package metrics

import (
	"context"

	"github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing of runs and steps.
type Tracer interface {
	// StartRunSpan starts a span for run. The returned function ends it.
	StartRunSpan(ctx context.Context, run *model.PipelineRun) (context.Context, func())

	// StartStepSpan starts a span for step, usually as a child of the run span.
	StartStepSpan(ctx context.Context, step *model.StepRun) (context.Context, func())

	// RecordError records err on the current span.
	// module names the component where the error occurred (e.g., "reader", "features").
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a named event with attributes on the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
