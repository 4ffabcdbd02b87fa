// Package sqlite registers the SQLite dialector and provides its DBProvider.
package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/stationcast/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/stationcast/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/stationcast/pkg/batch/core/config"
)

// DBType is the adapter.database.<name>.type value handled here.
const DBType = "sqlite"

func init() {
	gormadapter.RegisterDialector(DBType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := ConnectionString(cfg)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
		return sqlite.Open(dsn), nil
	})
}

// ConnectionString returns the SQLite DSN, which is the database file path.
func ConnectionString(c dbconfig.DatabaseConfig) (string, error) {
	if c.Database == "" {
		return "", errors.New("SQLite database path cannot be empty")
	}
	return c.Database, nil
}

// NewProvider creates the SQLite DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, DBType)
}
