package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/database"
)

func registerResolverLifecycle(lc fx.Lifecycle, r *GormDBConnectionResolver) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
}

// Module provides the DBConnectionResolver. Concrete providers come from the
// sqlite, postgres and mysql sub-packages.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Invoke(registerResolverLifecycle),
)
