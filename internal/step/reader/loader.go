// Package reader loads raw station event tables from Parquet or CSV files,
// either on the local file system or staged from a storage connection.
package reader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

const moduleName = "reader"

// Loader reads the raw table described by an InputConfig.
type Loader struct {
	resolver storage.StorageConnectionResolver
	required []string
}

// NewLoader creates a Loader that requires features.RequiredColumns.
// resolver may be nil when inputs are only read from the local file system.
func NewLoader(resolver storage.StorageConnectionResolver) *Loader {
	return &Loader{resolver: resolver, required: features.RequiredColumns}
}

// Load reads in.Path in in.Format. Integer station ids are converted to text.
func (l *Loader) Load(ctx context.Context, in config.InputConfig) (*table.Table, error) {
	path, cleanup, err := l.Stage(ctx, in)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tbl, err := ReadFile(path, FormatOf(in.Format, in.Path), l.required)
	if err != nil {
		return nil, err
	}
	if err := normaliseStationID(tbl); err != nil {
		return nil, err
	}
	logger.Infof("Loaded %d rows from '%s'.", tbl.NumRows(), in.Path)
	return tbl, nil
}

// ReadFile reads a local file in the given format, checking the required columns first.
func ReadFile(path, format string, required []string) (*table.Table, error) {
	switch format = FormatOf(format, path); format {
	case config.FormatParquet:
		return ReadParquetFile(path, required)
	case config.FormatCSV:
		return ReadCSVFile(path, required)
	default:
		return nil, exception.NewBatchErrorf(moduleName, "unsupported input format '%s'", format)
	}
}

// Stage returns a local path for in. Objects in a storage connection are downloaded
// to a temporary file that cleanup removes.
func (l *Loader) Stage(ctx context.Context, in config.InputConfig) (string, func(), error) {
	noop := func() {}
	if in.StorageRef == "" {
		return in.Path, noop, nil
	}
	if l.resolver == nil {
		return "", noop, exception.NewBatchErrorf(moduleName, "input storage '%s' configured but no storage resolver available", in.StorageRef)
	}
	conn, err := l.resolver.ResolveStorageConnection(ctx, in.StorageRef)
	if err != nil {
		return "", noop, exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve storage connection '%s'", in.StorageRef), err, false, false)
	}
	rc, err := conn.Download(ctx, in.Bucket, in.Path)
	if err != nil {
		return "", noop, exception.NewBatchError(moduleName, fmt.Sprintf("failed to download '%s' from '%s'", in.Path, in.StorageRef), err, false, true)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "stationcast-*"+filepath.Ext(in.Path))
	if err != nil {
		return "", noop, exception.NewBatchError(moduleName, "failed to create staging file", err, false, false)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logger.Warnf("Failed to remove staging file '%s': %v", tmp.Name(), err)
		}
	}
	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, exception.NewBatchError(moduleName, fmt.Sprintf("failed to stage '%s'", in.Path), err, false, true)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, exception.NewBatchError(moduleName, "failed to close staging file", err, false, false)
	}
	logger.Debugf("Staged '%s' from storage '%s' to '%s'.", in.Path, in.StorageRef, tmp.Name())
	return tmp.Name(), cleanup, nil
}

// FormatOf returns format, or the format implied by the extension of path when format is empty.
func FormatOf(format, path string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return config.FormatCSV
	default:
		return config.FormatParquet
	}
}

func normaliseStationID(tbl *table.Table) error {
	col, err := tbl.Column(features.ColStationID)
	if err != nil {
		return err
	}
	ints, ok := col.(*table.Int64Column)
	if !ok {
		return nil
	}
	out := make([]string, ints.Len())
	for i, v := range ints.Values {
		out[i] = strconv.FormatInt(v, 10)
	}
	return tbl.AddColumn(table.NewStringColumn(features.ColStationID, out))
}
