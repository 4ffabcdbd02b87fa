package reader

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// csvColumnTypes pins the raw columns whose type must not be guessed from the data.
var csvColumnTypes = map[string]series.Type{
	features.ColStationID:     series.String,
	features.ColTimestamp:     series.String,
	features.ColIsHoliday:     series.String,
	features.ColDeparture:     series.Float,
	features.ColPrecipitation: series.Float,
	features.ColTemperature:   series.Float,
}

// ReadCSVFile loads a CSV export with a header row into a Table.
func ReadCSVFile(path string, required []string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to open csv file '%s'", path), err, false, false)
	}
	defer f.Close()
	return ReadCSV(f, required)
}

// ReadCSV parses CSV from r. Empty cells and "NA"/"NaN" are nulls.
func ReadCSV(r io.Reader, required []string) (*table.Table, error) {
	df, err := loadDataFrame(r)
	if err != nil {
		return nil, err
	}
	names := df.Names()
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	for _, req := range required {
		if !present[req] {
			return nil, exception.NewMissingColumnError(req, names)
		}
	}

	cols := make([]table.Column, 0, len(names))
	for _, name := range names {
		col, err := convertSeries(df.Col(name))
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return table.New(cols...)
}

func loadDataFrame(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.WithTypes(csvColumnTypes),
		dataframe.NaNValues([]string{"", "NA", "NaN", "nan", "null"}),
	)
	if df.Err != nil {
		return df, exception.NewBatchError(moduleName, "failed to parse csv", df.Err, false, false)
	}
	logger.Debugf("Parsed csv: %d rows x %d columns.", df.Nrow(), df.Ncol())
	return df, nil
}

// convertSeries maps a gota series onto a table column.
func convertSeries(s series.Series) (table.Column, error) {
	n := s.Len()
	switch {
	case s.Name == features.ColIsHoliday:
		out := make([]bool, n)
		for i, rec := range s.Records() {
			out[i] = parseFlag(rec)
		}
		return table.NewBoolColumn(s.Name, out), nil

	case s.Type() == series.String:
		out := s.Records()
		for i := 0; i < n; i++ {
			if s.Elem(i).IsNA() {
				out[i] = ""
			}
		}
		return table.NewStringColumn(s.Name, out), nil

	case s.Type() == series.Bool:
		out := make([]bool, n)
		for i := 0; i < n; i++ {
			e := s.Elem(i)
			if !e.IsNA() {
				b, err := e.Bool()
				if err != nil {
					return nil, exception.NewBatchErrorf(moduleName, "column '%s' row %d", s.Name, i, err)
				}
				out[i] = b
			}
		}
		return table.NewBoolColumn(s.Name, out), nil

	case s.Type() == series.Int && !s.HasNaN():
		ints, err := s.Int()
		if err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("column '%s' is not integral", s.Name), err, false, false)
		}
		out := make([]int64, n)
		for i, v := range ints {
			out[i] = int64(v)
		}
		return table.NewInt64Column(s.Name, out), nil

	default:
		values := s.Float()
		valid := make([]bool, n)
		for i, v := range values {
			valid[i] = !s.Elem(i).IsNA() && !math.IsNaN(v)
			if !valid[i] {
				values[i] = 0
			}
		}
		return table.NewFloat64Column(s.Name, values, valid), nil
	}
}

// parseFlag reads true/false in any case, or a number that is true when non-zero.
func parseFlag(s string) bool {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0 && !math.IsNaN(f)
	}
	return false
}
