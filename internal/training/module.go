package training

import (
	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/engine/step/retry"
)

func provideTrainer(cfg *config.Config, resolver storage.StorageConnectionResolver) *Trainer {
	return NewTrainer(cfg, resolver).WithRetry(retry.NewPolicyFromConfig(cfg))
}

// Module provides the Trainer with the configured upload retry policy.
var Module = fx.Options(
	fx.Provide(provideTrainer),
)
