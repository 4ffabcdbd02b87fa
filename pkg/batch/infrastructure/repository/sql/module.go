package sql

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/database"
	"github.com/tigerroll/stationcast/pkg/batch/component/migration"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/core/domain/repository"
	"github.com/tigerroll/stationcast/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// RunRepositoryParams are the Fx dependencies of NewRunRepositoryProvider.
type RunRepositoryParams struct {
	fx.In
	Lifecycle    fx.Lifecycle
	Cfg          *config.Config
	DBResolver   database.DBConnectionResolver
	MigrationsFS fs.FS `name:"migrationsFS"`
}

// NewRunRepositoryProvider returns the SQL repository when infrastructure.run_repository_db_ref
// names a connection, after migrating its schema. Otherwise run history is kept in memory.
func NewRunRepositoryProvider(p RunRepositoryParams) (repository.RunRepository, error) {
	dbRef := p.Cfg.Stationcast.Infrastructure.RunRepositoryDBRef
	if dbRef == "" {
		logger.Infof("No run repository database configured. Using in-memory run repository.")
		return inmemory.NewInMemoryRunRepository(), nil
	}

	ctx := context.Background()
	conn, err := p.DBResolver.ResolveDBConnection(ctx, dbRef)
	if err != nil {
		return nil, exception.NewBatchError("RunRepository", "failed to resolve run repository database", err, false, false)
	}
	m, err := migration.NewMigrator(conn)
	if err != nil {
		return nil, err
	}
	if err := m.Up(ctx, p.MigrationsFS, conn.Type()); err != nil {
		return nil, err
	}

	repo := NewSQLRunRepository(p.DBResolver, dbRef)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return repo.Close() },
	})
	logger.Infof("Run repository backed by database connection '%s'.", dbRef)
	return repo, nil
}

// Module provides repository.RunRepository.
var Module = fx.Options(
	fx.Provide(NewRunRepositoryProvider),
)
