// Package database defines the database adapter interfaces used by the run repository
// and by the schema migrator.
package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/stationcast/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/stationcast/pkg/batch/core/adapter"
)

// DBConnection is a named, pooled database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection

	// GormDB returns the ORM session bound to this connection.
	GormDB() *gorm.DB
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
	// RefreshConnection pings the pool.
	RefreshConnection(ctx context.Context) error
	// Config returns the configuration the connection was opened with.
	Config() dbconfig.DatabaseConfig
}

// DBProvider opens and caches connections of one database type.
type DBProvider interface {
	GetConnection(name string) (DBConnection, error)
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "sqlite", "postgres").
	Type() string
	ForceReconnect(name string) (DBConnection, error)
}

// DBConnectionResolver resolves named database connections across all providers.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProviderGroup is the Fx group collecting every DBProvider.
const DBProviderGroup = `group:"db_providers"`
