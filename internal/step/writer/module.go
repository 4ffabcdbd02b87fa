package writer

import (
	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/engine/step/retry"
)

func provideFeatureWriter(resolver storage.StorageConnectionResolver, cfg *config.Config) *FeatureWriter {
	return NewFeatureWriter(resolver).WithRetry(retry.NewPolicyFromConfig(cfg))
}

// Module provides the FeatureWriter with the configured upload retry policy.
var Module = fx.Options(
	fx.Provide(provideFeatureWriter),
)
