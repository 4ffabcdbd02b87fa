package app

import (
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/stationcast/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage/local"
	migrationfs "github.com/tigerroll/stationcast/pkg/batch/component/migration/filesystem"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// DefaultDBAdapters is used when no adapter list is given.
const DefaultDBAdapters = "sqlite,postgres,mysql"

// DBProviderMap is used to select DB providers by name.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	"postgres": postgres.NewProvider,
	"mysql":    mysql.NewProvider,
	"sqlite":   sqlite.NewProvider,
}

// DBProviderOptions registers the DB providers named in the comma-separated list.
// Unknown names are skipped with a warning.
func DBProviderOptions(adapters string) []fx.Option {
	if strings.TrimSpace(adapters) == "" {
		adapters = DefaultDBAdapters
	}
	options := make([]fx.Option, 0)
	for _, name := range strings.Split(adapters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		provider, ok := DBProviderMap[name]
		if !ok {
			logger.Warnf("DB provider '%s' is not supported. Skipping.", name)
			continue
		}
		options = append(options, fx.Provide(fx.Annotate(provider, fx.ResultTags(database.DBProviderGroup))))
		logger.Debugf("DB provider '%s' registered.", name)
	}
	return options
}

// Module provides the database and storage adapters used by the run repository,
// the loader, the feature writer and the report upload.
var Module = fx.Options(
	gormadapter.Module,
	migrationfs.Module,

	storage.Module,
	local.Module,
	gcs.Module,
)
