package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
)

// Module contributes the LocalProvider to the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(storageAdapter.StorageProviderGroup),
	)),
)
