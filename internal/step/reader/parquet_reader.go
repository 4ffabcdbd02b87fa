package reader

import (
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	preader "github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/types"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// parquetField is a leaf column of a Parquet file schema.
type parquetField struct {
	name    string
	element *parquet.SchemaElement
}

// ReadParquetFile loads every leaf column of a flat Parquet file into a Table.
// The footer is checked for required before any row is read.
func ReadParquetFile(path string, required []string) (*table.Table, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to open parquet file '%s'", path), err, false, false)
	}
	defer fr.Close()

	pr, err := preader.NewParquetColumnReader(fr, 1)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to read parquet footer of '%s'", path), err, false, false)
	}
	defer pr.ReadStop()

	root, fields := footerFields(pr.Footer)
	if err := requireFields(fields, required); err != nil {
		return nil, err
	}

	numRows := pr.GetNumRows()
	cols := make([]table.Column, 0, len(fields))
	for _, f := range fields {
		values, _, _, err := pr.ReadColumnByPath(common.ReformPathStr(root+"."+f.name), numRows)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to read column '%s' of '%s'", f.name, path), err, false, false)
		}
		if int64(len(values)) != numRows {
			return nil, exception.NewBatchErrorf(moduleName, "column '%s' of '%s' has %d values, file has %d rows", f.name, path, len(values), numRows)
		}
		col, err := convertParquetColumn(f, values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	tbl, err := table.New(cols...)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Read %d rows x %d columns from parquet file '%s'.", tbl.NumRows(), tbl.NumColumns(), path)
	return tbl, nil
}

// footerFields returns the root name and the top-level leaf columns of the file schema.
// Nested groups are skipped.
func footerFields(meta *parquet.FileMetaData) (string, []parquetField) {
	if meta == nil || len(meta.Schema) == 0 {
		return "", nil
	}
	root := meta.Schema[0]
	fields := make([]parquetField, 0, len(meta.Schema)-1)
	for i := 1; i < len(meta.Schema); i++ {
		el := meta.Schema[i]
		if el.NumChildren != nil && *el.NumChildren > 0 {
			logger.Warnf("Skipping nested parquet column '%s'.", el.Name)
			i += skipGroup(meta.Schema, i)
			continue
		}
		fields = append(fields, parquetField{name: el.Name, element: el})
	}
	return root.Name, fields
}

// skipGroup returns how many schema elements follow the group at i.
func skipGroup(schema []*parquet.SchemaElement, i int) int {
	n := 0
	pending := int(schema[i].GetNumChildren())
	for pending > 0 && i+n+1 < len(schema) {
		n++
		pending--
		pending += int(schema[i+n].GetNumChildren())
	}
	return n
}

func requireFields(fields []parquetField, required []string) error {
	names := make([]string, len(fields))
	present := make(map[string]bool, len(fields))
	for i, f := range fields {
		names[i] = f.name
		present[f.name] = true
	}
	for _, r := range required {
		if !present[r] {
			return exception.NewMissingColumnError(r, names)
		}
	}
	return nil
}

// convertParquetColumn maps a physical Parquet column onto a table column. nil values are nulls.
func convertParquetColumn(f parquetField, values []interface{}) (table.Column, error) {
	el := f.element
	n := len(values)
	switch el.GetType() {
	case parquet.Type_BOOLEAN:
		out := make([]bool, n)
		for i, v := range values {
			if b, ok := v.(bool); ok {
				out[i] = b
			}
		}
		return table.NewBoolColumn(f.name, out), nil

	case parquet.Type_INT32, parquet.Type_INT64:
		if unit, ok := timestampUnit(el); ok {
			out := make([]time.Time, n)
			for i, v := range values {
				if x, ok := toInt64(v); ok {
					out[i] = fromEpoch(x, unit)
				}
			}
			return table.NewTimeColumn(f.name, out), nil
		}
		ints := make([]int64, n)
		valid := make([]bool, n)
		nulls := 0
		for i, v := range values {
			ints[i], valid[i] = toInt64(v)
			if !valid[i] {
				nulls++
			}
		}
		if nulls == 0 {
			return table.NewInt64Column(f.name, ints), nil
		}
		floats := make([]float64, n)
		for i, x := range ints {
			floats[i] = float64(x)
		}
		return table.NewFloat64Column(f.name, floats, valid), nil

	case parquet.Type_FLOAT, parquet.Type_DOUBLE:
		floats := make([]float64, n)
		valid := make([]bool, n)
		for i, v := range values {
			switch x := v.(type) {
			case float64:
				floats[i], valid[i] = x, true
			case float32:
				floats[i], valid[i] = float64(x), true
			}
		}
		return table.NewFloat64Column(f.name, floats, valid), nil

	case parquet.Type_INT96:
		out := make([]time.Time, n)
		for i, v := range values {
			if s, ok := v.(string); ok {
				out[i] = types.INT96ToTime(s).UTC()
			}
		}
		return table.NewTimeColumn(f.name, out), nil

	case parquet.Type_BYTE_ARRAY, parquet.Type_FIXED_LEN_BYTE_ARRAY:
		out := make([]string, n)
		for i, v := range values {
			if s, ok := v.(string); ok {
				out[i] = s
			}
		}
		return table.NewStringColumn(f.name, out), nil

	default:
		return nil, exception.NewBatchErrorf(moduleName, "column '%s' has unsupported parquet type %s", f.name, el.GetType())
	}
}

// timestampUnit reports the tick length of a timestamp-annotated integer column.
func timestampUnit(el *parquet.SchemaElement) (time.Duration, bool) {
	if el.ConvertedType != nil {
		switch *el.ConvertedType {
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return time.Millisecond, true
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return time.Microsecond, true
		}
	}
	if lt := el.LogicalType; lt != nil && lt.IsSetTIMESTAMP() {
		unit := lt.TIMESTAMP.Unit
		switch {
		case unit.IsSetMILLIS():
			return time.Millisecond, true
		case unit.IsSetMICROS():
			return time.Microsecond, true
		case unit.IsSetNANOS():
			return time.Nanosecond, true
		}
	}
	return 0, false
}

func fromEpoch(ticks int64, unit time.Duration) time.Time {
	switch unit {
	case time.Millisecond:
		return time.UnixMilli(ticks).UTC()
	case time.Microsecond:
		return time.UnixMicro(ticks).UTC()
	default:
		return time.Unix(0, ticks).UTC()
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	default:
		return 0, false
	}
}
