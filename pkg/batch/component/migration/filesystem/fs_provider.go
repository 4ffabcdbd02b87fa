// Package filesystem embeds the run-repository migrations, one directory per database type.
package filesystem

import (
	"embed"
	"io/fs"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

//go:embed resource
var rawMigrationFS embed.FS

// ProvideMigrationsFS exposes the contents of the 'resource' directory.
func ProvideMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for migration FS: %v", err)
	}
	return subFS
}
