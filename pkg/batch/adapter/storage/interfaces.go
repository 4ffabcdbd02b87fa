// Package storage defines the common interfaces for the storage adapters.
// The pipeline reads raw tables and writes feature partitions and reports
// through these interfaces, so the same job runs against a local directory
// or a GCS bucket.
package storage

import (
	"context"
	"io"

	coreAdapter "github.com/tigerroll/stationcast/pkg/batch/core/adapter"
)

// StorageExecutor defines generic object storage operations.
type StorageExecutor interface {
	// Upload writes data to bucket/objectName. contentType is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName. The caller must close the returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is a named connection to one storage backend.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor
}

// StorageProvider creates and caches connections of one storage type.
type StorageProvider interface {
	// GetConnection retrieves the StorageConnection with the specified name.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the storage type handled by this provider (e.g., "local", "gcs").
	Type() string
	// ForceReconnect closes and re-creates the connection with the specified name.
	ForceReconnect(name string) (StorageConnection, error)
}

// StorageConnectionResolver resolves named storage connections across all providers.
type StorageConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}

// StorageProviderGroup is the Fx group collecting every StorageProvider.
const StorageProviderGroup = `group:"storage_providers"`
