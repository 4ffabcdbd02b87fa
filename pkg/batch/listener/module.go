package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/pkg/batch/listener/logging"
)

// Module aggregates all listener modules of the batch framework.
// Metrics and tracing are recorded by the job and step themselves.
var Module = fx.Options(
	logging.Module,
)
