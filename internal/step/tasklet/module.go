package tasklet

import (
	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/internal/step/reader"
	"github.com/tigerroll/stationcast/internal/step/writer"
	"github.com/tigerroll/stationcast/internal/training"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
)

func provideFeatureTasklet(
	cfg *config.Config,
	loader *reader.Loader,
	builder *features.Builder,
	w *writer.FeatureWriter,
	recorder metrics.MetricRecorder,
) *FeatureTasklet {
	return NewFeatureTasklet(cfg, loader, builder, w, recorder)
}

func provideTrainingTasklet(trainer *training.Trainer, recorder metrics.MetricRecorder) *TrainingTasklet {
	return NewTrainingTasklet(trainer, recorder)
}

// Module provides the feature and training tasklets.
var Module = fx.Options(
	fx.Provide(features.NewBuilder),
	fx.Provide(provideFeatureTasklet),
	fx.Provide(provideTrainingTasklet),
)
