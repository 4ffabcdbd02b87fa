package runner

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/stationcast/pkg/batch/core/application/port"
	repository "github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
)

// NewJobRunner provides the concrete JobRunner implementation (SimpleJobRunner).
func NewJobRunner(repo repository.RunRepository) port.JobRunner {
	return NewSimpleJobRunner(repo)
}

// Module provides the JobRunner implementation.
var Module = fx.Options(
	fx.Provide(NewJobRunner),
)
