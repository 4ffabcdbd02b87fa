package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/stationcast/pkg/batch/adapter/database"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

type migratorImpl struct {
	sqlDB  *sql.DB
	dbType string
	table  string
}

// NewMigrator creates a Migrator operating on conn.
func NewMigrator(conn database.DBConnection) (Migrator, error) {
	sqlDB, err := conn.GetSQLDB()
	if err != nil {
		return nil, exception.NewBatchError("migration", "failed to get underlying sql.DB", err, false, false)
	}
	return newMigrator(sqlDB, conn.Type(), MigrationsTable), nil
}

func newMigrator(sqlDB *sql.DB, dbType, table string) *migratorImpl {
	return &migratorImpl{sqlDB: sqlDB, dbType: dbType, table: table}
}

func (m *migratorImpl) databaseDriver() (migratedb.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(m.sqlDB, &postgres.Config{MigrationsTable: m.table})
	case "mysql":
		return mysql.WithInstance(m.sqlDB, &mysql.Config{MigrationsTable: m.table})
	case "sqlite":
		return sqlite.WithInstance(m.sqlDB, &sqlite.Config{MigrationsTable: m.table})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *migratorImpl) instance(migrationFS fs.FS, path string) (*migrate.Migrate, source.Driver, error) {
	src, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	drv, err := m.databaseDriver()
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	mi, err := migrate.NewWithInstance("iofs", src, m.dbType, drv)
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mi, src, nil
}

func (m *migratorImpl) run(ctx context.Context, migrationFS fs.FS, path, command string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Infof("Executing migration '%s' (Path: %s, Table: %s)", command, path, m.table)

	mi, src, err := m.instance(migrationFS, path)
	if err != nil {
		return exception.NewBatchError("migration", "failed to prepare migration", err, false, false)
	}
	// mi.Close would also close the shared *sql.DB; release the source only.
	defer func() {
		if srcErr := src.Close(); srcErr != nil {
			logger.Debugf("Migration source close: %v", srcErr)
		}
	}()

	switch command {
	case "up":
		err = mi.Up()
	case "down":
		err = mi.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		if version, dirty, vErr := mi.Version(); vErr == nil {
			logger.Errorf("Migration failed at version %d (dirty: %t)", version, dirty)
		}
		return exception.NewBatchErrorf("migration", "migration '%s' failed (DB: %s, Path: %s)", command, m.dbType, path, err)
	}

	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}

func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.run(ctx, migrationFS, path, "up")
}

func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.run(ctx, migrationFS, path, "down")
}
