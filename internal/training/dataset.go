// Package training fits a departure regressor on one station's feature rows and evaluates it.
package training

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/internal/features"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

const moduleName = "training"

// Dataset is the design matrix and target of one station.
// Row i of X, Y[i] and Hours[i] describe the same observation.
type Dataset struct {
	StationID    string
	FeatureNames []string
	X            *mat.Dense
	Y            []float64
	Hours        []int
	// Dropped counts the station rows skipped for a missing feature or target.
	Dropped int
}

// Len returns the number of observations.
func (d *Dataset) Len() int { return len(d.Y) }

// NewDataset selects the rows of stationID from a built feature table.
func NewDataset(tbl *table.Table, stationID string) (*Dataset, error) {
	if err := tbl.Require(features.ColStationID, features.TargetColumn); err != nil {
		return nil, err
	}
	if err := tbl.Require(features.FeatureColumns...); err != nil {
		return nil, err
	}
	stations, err := tbl.Strings(features.ColStationID)
	if err != nil {
		return nil, err
	}
	target, err := features.NumericColumn(tbl, features.TargetColumn)
	if err != nil {
		return nil, err
	}
	hours, err := features.NumericColumn(tbl, features.ColHour)
	if err != nil {
		return nil, err
	}
	cols := make([]*table.Float64Column, len(features.FeatureColumns))
	for j, name := range features.FeatureColumns {
		if name == features.ColIsHoliday {
			flags, err := features.FlagColumn(tbl, name)
			if err != nil {
				return nil, err
			}
			cols[j] = flagsToFloat(name, flags)
			continue
		}
		if cols[j], err = features.NumericColumn(tbl, name); err != nil {
			return nil, err
		}
	}

	p := len(cols)
	ds := &Dataset{StationID: stationID, FeatureNames: append([]string(nil), features.FeatureColumns...)}
	var data []float64
	row := make([]float64, p)
	for i, id := range stations.Values {
		if id != stationID {
			continue
		}
		y, ok := target.At(i)
		if ok {
			for j, c := range cols {
				if row[j], ok = c.At(i); !ok || math.IsNaN(row[j]) {
					ok = false
					break
				}
			}
		}
		if !ok {
			ds.Dropped++
			continue
		}
		data = append(data, row...)
		ds.Y = append(ds.Y, y)
		ds.Hours = append(ds.Hours, int(hours.Values[i]))
	}
	if ds.Len() == 0 {
		return nil, exception.NewBatchError(moduleName,
			"station '"+stationID+"' has no complete rows to train on", exception.ErrEmptyDataset, false, false)
	}
	ds.X = mat.NewDense(ds.Len(), p, data)
	logger.Infof("Dataset for station '%s': %d rows, %d dropped for missing values.", stationID, ds.Len(), ds.Dropped)
	return ds, nil
}

func flagsToFloat(name string, flags []bool) *table.Float64Column {
	values := make([]float64, len(flags))
	for i, b := range flags {
		if b {
			values[i] = 1
		}
	}
	return table.NewFloat64Column(name, values, nil)
}

// Subset returns the observations at idx, in that order.
func (d *Dataset) Subset(idx []int) *Dataset {
	_, p := d.X.Dims()
	out := &Dataset{
		StationID:    d.StationID,
		FeatureNames: d.FeatureNames,
		X:            mat.NewDense(len(idx), p, nil),
		Y:            make([]float64, len(idx)),
		Hours:        make([]int, len(idx)),
	}
	for k, i := range idx {
		out.X.SetRow(k, d.X.RawRowView(i))
		out.Y[k] = d.Y[i]
		out.Hours[k] = d.Hours[i]
	}
	return out
}

// TrainTestSplit shuffles the observations with seed and holds out ceil(testSize*n) of them.
// The same seed always yields the same split.
func TrainTestSplit(d *Dataset, testSize float64, seed int64) (train, test *Dataset, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, exception.NewBatchErrorf(moduleName, "test size must be in (0, 1), got %v", testSize)
	}
	n := d.Len()
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, nil, exception.NewBatchError(moduleName,
			"not enough rows to split into train and test sets", exception.ErrEmptyDataset, false, false)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return d.Subset(perm[nTest:]), d.Subset(perm[:nTest]), nil
}
