// Package writer persists the feature table as station-partitioned Parquet objects.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/stationcast/internal/domain/entity"
	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/pkg/batch/adapter/storage"
	config "github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/engine/step/retry"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

const moduleName = "writer"

// WriteResult lists what one Write uploaded.
type WriteResult struct {
	Rows    int
	Objects []string
}

// FeatureWriter writes one Parquet object per station under <prefix>/station_id=<id>/.
type FeatureWriter struct {
	resolver     storage.StorageConnectionResolver
	retry        retry.RetryPolicy
	now          func() time.Time
	newRowWriter func(buf *bytes.Buffer, codec parquet.CompressionCodec) (rowWriter, error)
}

// rowWriter is the part of the Parquet writer used to encode one partition.
type rowWriter interface {
	Write(src interface{}) error
	WriteStop() error
}

// NewFeatureWriter creates a FeatureWriter uploading through resolver. Uploads are attempted once.
func NewFeatureWriter(resolver storage.StorageConnectionResolver) *FeatureWriter {
	return &FeatureWriter{
		resolver:     resolver,
		retry:        retry.NoRetry(),
		now:          time.Now,
		newRowWriter: newParquetRowWriter,
	}
}

// WithRetry sets the policy applied to each partition upload.
func (w *FeatureWriter) WithRetry(policy retry.RetryPolicy) *FeatureWriter {
	w.retry = policy
	return w
}

// Write converts tbl to StationFeature records and uploads each station partition.
// A failing partition does not stop the others; all failures are returned together.
func (w *FeatureWriter) Write(ctx context.Context, tbl *table.Table, out config.OutputConfig) (*WriteResult, error) {
	if out.StorageRef == "" {
		return nil, exception.NewBatchErrorf(moduleName, "output storage_ref is not configured")
	}
	codec, err := compressionCodec(out.Compression)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("invalid compression type '%s'", out.Compression), err, false, false)
	}
	records, err := ToRecords(tbl)
	if err != nil {
		return nil, err
	}
	partitions := partitionByStation(records)

	conn, err := w.resolver.ResolveStorageConnection(ctx, out.StorageRef)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve storage connection '%s'", out.StorageRef), err, false, false)
	}

	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &WriteResult{}
	var multiErr error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			multiErr = multierror.Append(multiErr, err)
			break
		}
		items := partitions[key]
		buf, err := w.encodePartition(items, codec)
		if err != nil {
			multiErr = multierror.Append(multiErr, exception.NewBatchError(moduleName, fmt.Sprintf("failed to encode partition '%s'", key), err, false, false))
			continue
		}

		fileName := fmt.Sprintf("features_%s_%s.parquet", w.now().UTC().Format("20060102150405"), randomSuffix(8))
		objectName := path.Join(out.Prefix, key, fileName)
		data := buf.Bytes()
		logger.Debugf("Uploading %d bytes to %s/%s.", len(data), out.StorageRef, objectName)
		err = retry.Do(ctx, w.retry, "upload of "+objectName, func(ctx context.Context) error {
			if err := conn.Upload(ctx, out.Bucket, objectName, bytes.NewReader(data), "application/octet-stream"); err != nil {
				return exception.NewBatchError(moduleName, fmt.Sprintf("failed to upload partition '%s' to '%s'", key, objectName), err, false, true)
			}
			return nil
		})
		if err != nil {
			multiErr = multierror.Append(multiErr, err)
			continue
		}
		result.Rows += len(items)
		result.Objects = append(result.Objects, objectName)
		logger.Infof("Wrote %d rows for partition '%s' to %s.", len(items), key, objectName)
	}
	return result, multiErr
}

func newParquetRowWriter(buf *bytes.Buffer, codec parquet.CompressionCodec) (rowWriter, error) {
	pw, err := writer.NewParquetWriterFromWriter(buf, new(entity.StationFeature), 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = codec
	return pw, nil
}

// encodePartition writes items into an in-memory Parquet file.
// A panic inside the Parquet writer is returned as an error.
func (w *FeatureWriter) encodePartition(items []entity.StationFeature, codec parquet.CompressionCodec) (buf *bytes.Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("parquet writer panicked: %v", r)
		}
	}()
	buf = new(bytes.Buffer)
	pw, err := w.newRowWriter(buf, codec)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return buf, nil
}

func partitionByStation(records []entity.StationFeature) map[string][]entity.StationFeature {
	out := make(map[string][]entity.StationFeature)
	for _, r := range records {
		key := "station_id=" + r.StationID
		out[key] = append(out[key], r)
	}
	return out
}

// ToRecords converts a built feature table into records, keeping row order.
func ToRecords(tbl *table.Table) ([]entity.StationFeature, error) {
	if err := tbl.Require(append(append([]string{}, features.RequiredColumns...), features.DerivedColumns...)...); err != nil {
		return nil, err
	}
	stations, err := tbl.Strings(features.ColStationID)
	if err != nil {
		return nil, err
	}
	times, err := tbl.Times(features.ColTimestamp)
	if err != nil {
		return nil, err
	}
	holiday, err := features.FlagColumn(tbl, features.ColIsHoliday)
	if err != nil {
		return nil, err
	}

	floats := make(map[string]*table.Float64Column)
	for _, name := range []string{
		features.ColDeparture, features.ColPrecipitation, features.ColTemperature,
		features.ColPrevDepartures, features.ColRollingMeanDeparture,
		features.ColStationAvgDeparture, features.ColTemperatureSquared,
	} {
		if floats[name], err = features.NumericColumn(tbl, name); err != nil {
			return nil, err
		}
	}
	ints := make(map[string]*table.Int64Column)
	for _, name := range []string{
		features.ColHour, features.ColDayOfWeek, features.ColMonth, features.ColWeekOfYear,
		features.ColIsWeekend, features.ColDayType, features.ColHourXWeekend,
	} {
		if ints[name], err = tbl.Int64s(name); err != nil {
			return nil, err
		}
	}
	f := func(name string, i int) *float64 { return entity.Float(floats[name].At(i)) }
	n := func(name string, i int) int32 { return int32(ints[name].Values[i]) }

	records := make([]entity.StationFeature, tbl.NumRows())
	for i := range records {
		records[i] = entity.StationFeature{
			StationID:            stations.Values[i],
			Timestamp:            times.Values[i].UnixMicro(),
			Departure:            f(features.ColDeparture, i),
			Precipitation:        f(features.ColPrecipitation, i),
			Temperature:          f(features.ColTemperature, i),
			IsHoliday:            holiday[i],
			Hour:                 n(features.ColHour, i),
			DayOfWeek:            n(features.ColDayOfWeek, i),
			Month:                n(features.ColMonth, i),
			WeekOfYear:           n(features.ColWeekOfYear, i),
			IsWeekend:            n(features.ColIsWeekend, i),
			PrevDepartures:       f(features.ColPrevDepartures, i),
			RollingMeanDeparture: f(features.ColRollingMeanDeparture, i),
			StationAvgDeparture:  f(features.ColStationAvgDeparture, i),
			DayType:              n(features.ColDayType, i),
			TemperatureSquared:   f(features.ColTemperatureSquared, i),
			HourXWeekend:         n(features.ColHourXWeekend, i),
		}
	}
	return records, nil
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY", "":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

func randomSuffix(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
