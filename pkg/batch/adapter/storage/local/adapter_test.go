package local

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/stationcast/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage/gcs"
	coreConfig "github.com/tigerroll/stationcast/pkg/batch/core/config"
)

func testConfig(baseDir string) *coreConfig.Config {
	cfg := coreConfig.NewConfig()
	cfg.Stationcast.AdapterConfigs = map[string]interface{}{
		"storage": map[string]interface{}{
			"features": map[string]interface{}{"type": "local", "base_dir": baseDir, "bucket_name": "out"},
			"remote":   map[string]interface{}{"type": "gcs", "bucket_name": "b"},
		},
	}
	return cfg
}

func TestLocalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{BaseDir: t.TempDir()}, "test")
	require.NoError(t, err)

	require.NoError(t, conn.Upload(ctx, "bkt", "station_id=220/a.parquet", strings.NewReader("A"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "bkt", "station_id=221/b.parquet", strings.NewReader("B"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "bkt", "reports/report.json", strings.NewReader("{}"), "application/json"))

	rc, err := conn.Download(ctx, "bkt", "station_id=220/a.parquet")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "A", string(data))

	var names []string
	require.NoError(t, conn.ListObjects(ctx, "bkt", "station_id=", func(name string) error {
		names = append(names, name)
		return nil
	}))
	sort.Strings(names)
	assert.Equal(t, []string{"station_id=220/a.parquet", "station_id=221/b.parquet"}, names)

	require.NoError(t, conn.DeleteObject(ctx, "bkt", "station_id=220/a.parquet"))
	require.NoError(t, conn.DeleteObject(ctx, "bkt", "station_id=220/a.parquet"))
	_, err = conn.Download(ctx, "bkt", "station_id=220/a.parquet")
	assert.Error(t, err)
}

func TestLocalAdapter_RejectsEscape(t *testing.T) {
	conn, err := NewLocalAdapter(storageConfig.StorageConfig{BaseDir: t.TempDir()}, "test")
	require.NoError(t, err)

	err = conn.Upload(context.Background(), "", "../../etc/passwd", strings.NewReader("x"), "")
	assert.ErrorContains(t, err, "outside of BaseDir")
}

func TestLocalAdapter_RequiresBaseDir(t *testing.T) {
	_, err := NewLocalAdapter(storageConfig.StorageConfig{}, "test")
	assert.ErrorContains(t, err, "BaseDir must be specified")
}

func TestLocalProvider(t *testing.T) {
	base := t.TempDir()
	p := NewLocalProvider(testConfig(base))

	conn, err := p.GetConnection("features")
	require.NoError(t, err)
	again, err := p.GetConnection("features")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	require.NoError(t, conn.Upload(context.Background(), "", "x.txt", strings.NewReader("x"), ""))
	assert.FileExists(t, filepath.Join(base, "out", "x.txt"))

	_, err = p.GetConnection("remote")
	assert.ErrorContains(t, err, "type mismatch")
	_, err = p.GetConnection("unknown")
	assert.ErrorContains(t, err, "not found")

	reconnected, err := p.ForceReconnect("features")
	require.NoError(t, err)
	assert.NotSame(t, conn, reconnected)
	assert.NoError(t, p.CloseAll())
}

func TestConnectionResolver(t *testing.T) {
	cfg := testConfig(t.TempDir())
	r := storageAdapter.NewConnectionResolver([]storageAdapter.StorageProvider{NewLocalProvider(cfg), gcs.NewGCSProvider(cfg)}, cfg)

	conn, err := r.ResolveStorageConnection(context.Background(), "features")
	require.NoError(t, err)
	assert.Equal(t, ProviderType, conn.Type())
	assert.Equal(t, "features", conn.Name())

	cfg.Stationcast.AdapterConfigs["storage"].(map[string]interface{})["odd"] = map[string]interface{}{"type": "ftp"}
	_, err = r.ResolveStorageConnection(context.Background(), "odd")
	assert.ErrorContains(t, err, "no storage provider registered for type 'ftp'")
	assert.NoError(t, r.CloseAll())
}
