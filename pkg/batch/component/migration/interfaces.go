// Package migration applies the embedded run-repository schema with golang-migrate.
package migration

import (
	"context"
	"io/fs"
)

// MigrationsTable tracks the applied run-repository schema versions.
const MigrationsTable = "stationcast_schema_migrations"

// Migrator applies or rolls back schema migrations.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS.
	Up(ctx context.Context, migrationFS fs.FS, path string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string) error
}
