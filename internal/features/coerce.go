package features

import (
	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// NumericColumn returns name as a Float64Column, widening integer columns.
func NumericColumn(tbl *table.Table, name string) (*table.Float64Column, error) {
	col, err := tbl.Column(name)
	if err != nil {
		return nil, err
	}
	switch c := col.(type) {
	case *table.Float64Column:
		return c, nil
	case *table.Int64Column:
		values := make([]float64, c.Len())
		for i, v := range c.Values {
			values[i] = float64(v)
		}
		return table.NewFloat64Column(name, values, nil), nil
	default:
		return nil, exception.NewBatchErrorf("features", "column %q has unsupported kind %s", name, col.Kind())
	}
}

// FlagColumn returns name as booleans. Numeric columns are true when non-zero; missing is false.
func FlagColumn(tbl *table.Table, name string) ([]bool, error) {
	col, err := tbl.Column(name)
	if err != nil {
		return nil, err
	}
	switch c := col.(type) {
	case *table.BoolColumn:
		return c.Values, nil
	case *table.Int64Column:
		out := make([]bool, c.Len())
		for i, v := range c.Values {
			out[i] = v != 0
		}
		return out, nil
	case *table.Float64Column:
		out := make([]bool, c.Len())
		for i := range c.Values {
			v, ok := c.At(i)
			out[i] = ok && v != 0
		}
		return out, nil
	default:
		return nil, exception.NewBatchErrorf("features", "column %q has unsupported kind %s", name, col.Kind())
	}
}
