package writer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/tigerroll/stationcast/internal/domain/entity"
	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	storageLocal "github.com/tigerroll/stationcast/pkg/batch/adapter/storage/local"
	coreAdapter "github.com/tigerroll/stationcast/pkg/batch/core/adapter"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/engine/step/retry"
)

func builtTable(t *testing.T) *table.Table {
	t.Helper()
	raw, err := table.New(
		table.NewStringColumn(features.ColStationID, []string{"220", "7", "220"}),
		table.NewStringColumn(features.ColTimestamp, []string{"2024-03-04 08:00:00", "2024-03-04 08:00:00", "2024-03-04 09:00:00"}),
		table.NewFloat64Column(features.ColDeparture, []float64{5, 3, 0}, []bool{true, true, false}),
		table.NewFloat64Column(features.ColPrecipitation, []float64{0, 0, 0}, nil),
		table.NewFloat64Column(features.ColTemperature, []float64{2, 4, 6}, nil),
		table.NewBoolColumn(features.ColIsHoliday, []bool{false, false, true}),
	)
	require.NoError(t, err)
	tbl, err := features.NewBuilder().Build(raw)
	require.NoError(t, err)
	return tbl
}

func localResolver(t *testing.T, base string) storage.StorageConnectionResolver {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Stationcast.AdapterConfigs = map[string]interface{}{
		"storage": map[string]interface{}{
			"out": map[string]interface{}{"type": "local", "base_dir": base},
		},
	}
	return storage.NewConnectionResolver([]storage.StorageProvider{storageLocal.NewLocalProvider(cfg)}, cfg)
}

func readFeatures(t *testing.T, path string) []entity.StationFeature {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(entity.StationFeature), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	rows := make([]entity.StationFeature, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestToRecords(t *testing.T) {
	records, err := ToRecords(builtTable(t))
	require.NoError(t, err)
	require.Len(t, records, 3)

	// (station_id, timestamp) order from the builder.
	assert.Equal(t, "220", records[0].StationID)
	assert.Equal(t, "220", records[1].StationID)
	assert.Equal(t, "7", records[2].StationID)

	first := records[0]
	assert.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC).UnixMicro(), first.Timestamp)
	assert.EqualValues(t, 8, first.Hour)
	assert.EqualValues(t, 0, first.DayOfWeek)
	assert.EqualValues(t, 2, first.DayType)
	assert.Nil(t, first.PrevDepartures)
	require.NotNil(t, first.TemperatureSquared)
	assert.Equal(t, 4.0, *first.TemperatureSquared)

	second := records[1]
	assert.Nil(t, second.Departure)
	require.NotNil(t, second.PrevDepartures)
	assert.Equal(t, 5.0, *second.PrevDepartures)
	assert.True(t, second.IsHoliday)
	assert.EqualValues(t, 0, second.DayType)
}

func TestToRecords_RequiresDerivedColumns(t *testing.T) {
	raw, err := table.New(table.NewStringColumn(features.ColStationID, []string{"1"}))
	require.NoError(t, err)
	_, err = ToRecords(raw)
	assert.Error(t, err)
}

func TestFeatureWriter_WritesStationPartitions(t *testing.T) {
	base := t.TempDir()
	w := NewFeatureWriter(localResolver(t, base))
	w.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	res, err := w.Write(context.Background(), builtTable(t), config.OutputConfig{
		StorageRef:  "out",
		Bucket:      "lake",
		Prefix:      "features",
		Compression: "GZIP",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	require.Len(t, res.Objects, 2)
	assert.True(t, strings.HasPrefix(res.Objects[0], "features/station_id=220/features_20240501120000_"))
	assert.True(t, strings.HasPrefix(res.Objects[1], "features/station_id=7/"))

	rows := readFeatures(t, filepath.Join(base, "lake", res.Objects[0]))
	require.Len(t, rows, 2)
	assert.Equal(t, "220", rows[0].StationID)
	require.NotNil(t, rows[1].PrevDepartures)
	assert.Equal(t, 5.0, *rows[1].PrevDepartures)

	rows = readFeatures(t, filepath.Join(base, "lake", res.Objects[1]))
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].StationID)
}

func TestFeatureWriter_RequiresStorageRef(t *testing.T) {
	_, err := NewFeatureWriter(nil).Write(context.Background(), builtTable(t), config.OutputConfig{})
	assert.Error(t, err)
}

func TestCompressionCodec(t *testing.T) {
	for in, want := range map[string]parquet.CompressionCodec{
		"":       parquet.CompressionCodec_SNAPPY,
		"snappy": parquet.CompressionCodec_SNAPPY,
		"GZIP":   parquet.CompressionCodec_GZIP,
		"NONE":   parquet.CompressionCodec_UNCOMPRESSED,
	} {
		got, err := compressionCodec(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := compressionCodec("LZ4")
	assert.Error(t, err)
}

type mockConnection struct {
	mock.Mock
}

func (m *mockConnection) Close() error { return nil }
func (m *mockConnection) Type() string { return "mock" }
func (m *mockConnection) Name() string { return "out" }
func (m *mockConnection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	return m.Called(bucket, objectName).Error(0)
}
func (m *mockConnection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (m *mockConnection) ListObjects(ctx context.Context, bucket, prefix string, fn func(string) error) error {
	return nil
}
func (m *mockConnection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	return nil
}

type staticResolver struct {
	conn storage.StorageConnection
}

func (r staticResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.conn, nil
}

func (r staticResolver) ResolveStorageConnection(ctx context.Context, name string) (storage.StorageConnection, error) {
	return r.conn, nil
}

func TestFeatureWriter_AggregatesPartitionFailures(t *testing.T) {
	conn := &mockConnection{}
	conn.On("Upload", "", mock.MatchedBy(func(s string) bool { return strings.Contains(s, "station_id=220/") })).Return(errors.New("quota exceeded"))
	conn.On("Upload", "", mock.MatchedBy(func(s string) bool { return strings.Contains(s, "station_id=7/") })).Return(nil)

	w := NewFeatureWriter(staticResolver{conn: conn})
	res, err := w.Write(context.Background(), builtTable(t), config.OutputConfig{StorageRef: "out", Compression: "NONE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 1, res.Rows)
	require.Len(t, res.Objects, 1)
	assert.Contains(t, res.Objects[0], "station_id=7/")
	conn.AssertNumberOfCalls(t, "Upload", 2)
}

func TestFeatureWriter_RetriesFailedUpload(t *testing.T) {
	conn := &mockConnection{}
	conn.On("Upload", "", mock.MatchedBy(func(s string) bool { return strings.Contains(s, "station_id=220/") })).Return(errors.New("503 backend error")).Once()
	conn.On("Upload", "", mock.Anything).Return(nil)

	w := NewFeatureWriter(staticResolver{conn: conn}).WithRetry(retry.NewPolicy(3, time.Millisecond))
	res, err := w.Write(context.Background(), builtTable(t), config.OutputConfig{StorageRef: "out", Compression: "NONE"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows)
	assert.Len(t, res.Objects, 2)
	conn.AssertNumberOfCalls(t, "Upload", 3)
}

func TestFeatureWriter_KeepsMicrosecondTimestamps(t *testing.T) {
	raw, err := table.New(
		table.NewStringColumn(features.ColStationID, []string{"220", "220"}),
		table.NewStringColumn(features.ColTimestamp, []string{"2024-03-04 08:00:00.123456", "2024-03-04 08:00:00.123457"}),
		table.NewFloat64Column(features.ColDeparture, []float64{5, 6}, nil),
		table.NewFloat64Column(features.ColPrecipitation, []float64{0, 0}, nil),
		table.NewFloat64Column(features.ColTemperature, []float64{2, 2}, nil),
		table.NewBoolColumn(features.ColIsHoliday, []bool{false, false}),
	)
	require.NoError(t, err)
	tbl, err := features.NewBuilder().Build(raw)
	require.NoError(t, err)

	base := t.TempDir()
	res, err := NewFeatureWriter(localResolver(t, base)).Write(context.Background(), tbl, config.OutputConfig{
		StorageRef: "out",
		Bucket:     "lake",
	})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)

	rows := readFeatures(t, filepath.Join(base, "lake", res.Objects[0]))
	require.Len(t, rows, 2)
	want := time.Date(2024, 3, 4, 8, 0, 0, 123456000, time.UTC)
	assert.True(t, want.Equal(time.UnixMicro(rows[0].Timestamp)))
	assert.Equal(t, int64(1), rows[1].Timestamp-rows[0].Timestamp)
}

type panickingRowWriter struct {
	rowWriter
	station string
}

func (p *panickingRowWriter) Write(src interface{}) error {
	if src.(entity.StationFeature).StationID == p.station {
		panic("encoder bug")
	}
	return p.rowWriter.Write(src)
}

func TestFeatureWriter_RecoversEncoderPanic(t *testing.T) {
	conn := &mockConnection{}
	conn.On("Upload", "", mock.Anything).Return(nil)

	w := NewFeatureWriter(staticResolver{conn: conn})
	w.newRowWriter = func(buf *bytes.Buffer, codec parquet.CompressionCodec) (rowWriter, error) {
		pw, err := newParquetRowWriter(buf, codec)
		if err != nil {
			return nil, err
		}
		return &panickingRowWriter{rowWriter: pw, station: "220"}, nil
	}

	res, err := w.Write(context.Background(), builtTable(t), config.OutputConfig{StorageRef: "out", Compression: "NONE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parquet writer panicked: encoder bug")
	require.Len(t, res.Objects, 1)
	assert.Contains(t, res.Objects[0], "station_id=7/")
	conn.AssertNumberOfCalls(t, "Upload", 1)
}
