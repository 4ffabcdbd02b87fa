package table

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

func sample(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		NewStringColumn("station_id", []string{"220", "101", "220"}),
		NewFloat64Column("departure", []float64{5, 0, 9}, []bool{true, false, true}),
		NewTimeColumn("timestamp", []time.Time{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
			{},
		}),
	)
	require.NoError(t, err)
	return tbl
}

func TestAddColumn_LengthMismatch(t *testing.T) {
	tbl := sample(t)
	err := tbl.AddColumn(NewInt64Column("hour", []int64{1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "hour" has 1 rows, table has 3`)
}

func TestAddColumn_ReplacesInPlace(t *testing.T) {
	tbl := sample(t)
	require.NoError(t, tbl.AddColumn(NewStringColumn("departure", []string{"a", "b", "c"})))
	assert.Equal(t, []string{"station_id", "departure", "timestamp"}, tbl.ColumnNames())

	c, err := tbl.Strings("departure")
	require.NoError(t, err)
	assert.Equal(t, "b", c.Values[1])
}

func TestColumn_Missing(t *testing.T) {
	tbl := sample(t)
	_, err := tbl.Column("temperature")

	var mce *exception.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "temperature", mce.Column)
	assert.ElementsMatch(t, []string{"station_id", "departure", "timestamp"}, mce.Available)
	assert.ErrorIs(t, tbl.Require("station_id", "is_holiday"), exception.ErrMissingColumn)
}

func TestTypedAccessor_KindMismatch(t *testing.T) {
	_, err := sample(t).Float64s("station_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected float64")
}

func TestTakeAndClone(t *testing.T) {
	tbl := sample(t)
	taken := tbl.Take([]int{2, 0})
	assert.Equal(t, 2, taken.NumRows())

	dep, err := taken.Float64s("departure")
	require.NoError(t, err)
	v, ok := dep.At(0)
	assert.True(t, ok)
	assert.Equal(t, 9.0, v)

	cloned := tbl.Clone()
	cd, _ := cloned.Float64s("departure")
	cd.Set(1, 42)
	od, _ := tbl.Float64s("departure")
	_, ok = od.At(1)
	assert.False(t, ok, "clone must not share storage")
}

func TestHeadAndSchema(t *testing.T) {
	tbl := sample(t)
	head := tbl.Head(10)
	lines := strings.Split(strings.TrimRight(head, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, head, "NaN")
	assert.Contains(t, head, "NaT")
	assert.Contains(t, tbl.Schema(), "timestamp: timestamp[UTC]")
}
