package reader

import "go.uber.org/fx"

// Module provides the raw table Loader.
var Module = fx.Options(
	fx.Provide(NewLoader),
)
