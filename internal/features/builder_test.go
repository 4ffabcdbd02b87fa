package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

type rawRow struct {
	station   string
	ts        string
	departure float64
	temp      float64
	holiday   bool
}

func rawTable(t *testing.T, rows []rawRow) *table.Table {
	t.Helper()
	n := len(rows)
	stations := make([]string, n)
	ts := make([]string, n)
	dep := make([]float64, n)
	precip := make([]float64, n)
	temp := make([]float64, n)
	holiday := make([]bool, n)
	for i, r := range rows {
		stations[i] = r.station
		ts[i] = r.ts
		dep[i] = r.departure
		precip[i] = 0.1
		temp[i] = r.temp
		holiday[i] = r.holiday
	}
	tbl, err := table.New(
		table.NewStringColumn(ColStationID, stations),
		table.NewStringColumn(ColTimestamp, ts),
		table.NewFloat64Column(ColDeparture, dep, nil),
		table.NewFloat64Column(ColPrecipitation, precip, nil),
		table.NewFloat64Column(ColTemperature, temp, nil),
		table.NewBoolColumn(ColIsHoliday, holiday),
	)
	require.NoError(t, err)
	return tbl
}

func mustFloats(t *testing.T, tbl *table.Table, name string) *table.Float64Column {
	t.Helper()
	c, err := tbl.Float64s(name)
	require.NoError(t, err)
	return c
}

func mustInts(t *testing.T, tbl *table.Table, name string) []int64 {
	t.Helper()
	c, err := tbl.Int64s(name)
	require.NoError(t, err)
	return c.Values
}

func TestBuild_StationLagAndRolling(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		{station: "220", ts: "2024-03-04T08:00:00Z", departure: 5},
		{station: "220", ts: "2024-03-04T09:00:00Z", departure: 7},
		{station: "220", ts: "2024-03-04T10:00:00Z", departure: 9},
	})

	out, err := NewBuilder().Build(tbl)
	require.NoError(t, err)

	prev := mustFloats(t, out, ColPrevDepartures)
	_, ok := prev.At(0)
	assert.False(t, ok)
	assert.Equal(t, []float64{5, 7}, prev.Values[1:])
	assert.Equal(t, []bool{false, true, true}, prev.Valid)

	rolling := mustFloats(t, out, ColRollingMeanDeparture)
	assert.Equal(t, []float64{5, 6, 7}, rolling.Values)
}

func TestBuild_DropsUnparseableTimestamps(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		{station: "220", ts: "2024-03-04 08:00:00", departure: 5},
		{station: "220", ts: "not-a-date", departure: 100},
		{station: "220", ts: "", departure: 100},
	})

	out, stats, err := NewBuilder().BuildWithStats(tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumRows())
	assert.Equal(t, 2, stats.DroppedRows)
	assert.Equal(t, 3, stats.InputRows)

	ts, err := out.Times(ColTimestamp)
	require.NoError(t, err)
	for _, v := range ts.Values {
		assert.False(t, v.IsZero())
	}
	dep := mustFloats(t, out, ColDeparture)
	assert.Equal(t, []float64{5}, dep.Values)
}

func TestBuild_SortsAndNeverCrossesStations(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		{station: "220", ts: "2024-03-04T10:00:00Z", departure: 9},
		{station: "101", ts: "2024-03-04T09:00:00Z", departure: 3},
		{station: "220", ts: "2024-03-04T08:00:00Z", departure: 5},
		{station: "101", ts: "2024-03-04T08:00:00Z", departure: 1},
	})

	out, stats, err := NewBuilder().BuildWithStats(tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Stations)

	st, err := out.Strings(ColStationID)
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "101", "220", "220"}, st.Values)

	prev := mustFloats(t, out, ColPrevDepartures)
	assert.Equal(t, []bool{false, true, false, true}, prev.Valid)
	assert.Equal(t, 1.0, prev.Values[1])
	assert.Equal(t, 5.0, prev.Values[3])

	rolling := mustFloats(t, out, ColRollingMeanDeparture)
	assert.Equal(t, []float64{1, 2, 5, 7}, rolling.Values)
}

func TestBuild_EqualTimestampsKeepInputOrder(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		{station: "220", ts: "2024-03-04T09:00:00Z", departure: 1},
		{station: "300", ts: "2024-03-04T08:00:00Z", departure: 50},
		{station: "220", ts: "2024-03-04 09:00:00", departure: 2},
		{station: "220", ts: "2024-03-04T08:00:00Z", departure: 0},
		{station: "220", ts: "2024-03-04T18:00:00+09:00", departure: 3},
	})

	out, err := NewBuilder().Build(tbl)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 1, 2, 3, 50}, mustFloats(t, out, ColDeparture).Values)
	prev := mustFloats(t, out, ColPrevDepartures)
	assert.Equal(t, []float64{0, 1, 2}, prev.Values[1:4])
	_, ok := prev.At(4)
	assert.False(t, ok)
}

func TestBuild_RollingWindowIsThree(t *testing.T) {
	deps := []float64{2, 4, 6, 8, 10}
	rows := make([]rawRow, len(deps))
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i, d := range deps {
		rows[i] = rawRow{station: "7", ts: base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339), departure: d}
	}

	out, err := NewBuilder().Build(rawTable(t, rows))
	require.NoError(t, err)
	rolling := mustFloats(t, out, ColRollingMeanDeparture)
	for i := range deps {
		lo := i - 2
		if lo < 0 {
			lo = 0
		}
		sum := 0.0
		for _, d := range deps[lo : i+1] {
			sum += d
		}
		assert.InDelta(t, sum/float64(i+1-lo), rolling.Values[i], 1e-12, "row %d", i)
	}
}

func TestBuild_StationAvgIsBroadcastPerStationHour(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		{station: "220", ts: "2024-03-04T08:00:00Z", departure: 2},
		{station: "220", ts: "2024-03-05T08:30:00Z", departure: 4},
		{station: "220", ts: "2024-03-06T08:15:00Z", departure: 9},
		{station: "220", ts: "2024-03-04T09:00:00Z", departure: 1},
		{station: "101", ts: "2024-03-04T08:00:00Z", departure: 100},
	})

	out, err := NewBuilder().Build(tbl)
	require.NoError(t, err)

	st, _ := out.Strings(ColStationID)
	hours := mustInts(t, out, ColHour)
	avg := mustFloats(t, out, ColStationAvgDeparture)

	seen := map[stationHour]float64{}
	for i := range st.Values {
		key := stationHour{st.Values[i], hours[i]}
		if v, ok := seen[key]; ok {
			assert.Equal(t, v, avg.Values[i])
		}
		seen[key] = avg.Values[i]
	}
	assert.Equal(t, 5.0, seen[stationHour{"220", 8}])
	assert.Equal(t, 1.0, seen[stationHour{"220", 9}])
	assert.Equal(t, 100.0, seen[stationHour{"101", 8}])
}

func TestBuild_CalendarAndComposite(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		// Saturday, holiday: holiday wins.
		{station: "220", ts: "2024-12-28T14:00:00Z", departure: 1, temp: -3, holiday: true},
		// Sunday.
		{station: "220", ts: "2024-12-29T15:00:00Z", departure: 1, temp: 2},
		// Monday, ISO week 1 of 2025.
		{station: "220", ts: "2024-12-30T16:00:00+02:00", departure: 1, temp: 4},
	})

	out, err := NewBuilder().Build(tbl)
	require.NoError(t, err)

	assert.Equal(t, []int64{14, 15, 14}, mustInts(t, out, ColHour))
	assert.Equal(t, []int64{5, 6, 0}, mustInts(t, out, ColDayOfWeek))
	assert.Equal(t, []int64{12, 12, 12}, mustInts(t, out, ColMonth))
	assert.Equal(t, []int64{52, 52, 1}, mustInts(t, out, ColWeekOfYear))
	assert.Equal(t, []int64{1, 1, 0}, mustInts(t, out, ColIsWeekend))
	assert.Equal(t, []int64{DayTypeHoliday, DayTypeWeekend, DayTypeWeekday}, mustInts(t, out, ColDayType))
	assert.Equal(t, []int64{14, 15, 0}, mustInts(t, out, ColHourXWeekend))
	assert.Equal(t, []float64{9, 4, 16}, mustFloats(t, out, ColTemperatureSquared).Values)
}

func TestBuild_OutputColumnOrder(t *testing.T) {
	out, err := NewBuilder().Build(rawTable(t, []rawRow{{station: "1", ts: "2024-01-01", departure: 1}}))
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, RequiredColumns...), DerivedColumns...), out.ColumnNames())
}

func TestBuild_MissingDeparturePropagates(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		{station: "220", ts: "2024-03-04T08:00:00Z", departure: 4},
		{station: "220", ts: "2024-03-04T09:00:00Z"},
		{station: "220", ts: "2024-03-04T10:00:00Z", departure: 8},
	})
	dep, _ := tbl.Float64s(ColDeparture)
	dep.Valid[1] = false

	out, err := NewBuilder().Build(tbl)
	require.NoError(t, err)

	prev := mustFloats(t, out, ColPrevDepartures)
	assert.Equal(t, []bool{false, true, false}, prev.Valid)
	rolling := mustFloats(t, out, ColRollingMeanDeparture)
	assert.Equal(t, []float64{4, 4, 6}, rolling.Values)
}

func TestBuild_MissingColumn(t *testing.T) {
	tbl, err := table.New(
		table.NewStringColumn(ColStationID, []string{"220"}),
		table.NewStringColumn(ColTimestamp, []string{"2024-01-01"}),
	)
	require.NoError(t, err)

	_, err = NewBuilder().Build(tbl)
	require.Error(t, err)
	var mce *exception.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, ColDeparture, mce.Column)
	assert.True(t, errors.Is(err, exception.ErrMissingColumn))
	assert.True(t, exception.IsFatal(err))
}

func TestBuild_IsIdempotentAndLeavesInputUntouched(t *testing.T) {
	tbl := rawTable(t, []rawRow{
		{station: "b", ts: "2024-05-01T03:00:00Z", departure: 3, temp: 1.5},
		{station: "a", ts: "2024-05-01T02:00:00Z", departure: 2, temp: 2.5},
		{station: "a", ts: "bogus", departure: 2},
	})

	b := NewBuilder()
	first, err := b.Build(tbl)
	require.NoError(t, err)
	second, err := b.Build(tbl)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, tbl.NumRows())
	_, err = tbl.Strings(ColTimestamp)
	assert.NoError(t, err, "raw timestamp column must stay a string column")
}

func TestBuild_AcceptsInstantColumnsAndIntegerFlags(t *testing.T) {
	tbl, err := table.New(
		table.NewStringColumn(ColStationID, []string{"220", "220"}),
		table.NewTimeColumn(ColTimestamp, []time.Time{time.Date(2024, 6, 1, 10, 0, 0, 0, time.FixedZone("JST", 9*3600)), {}}),
		table.NewInt64Column(ColDeparture, []int64{3, 4}),
		table.NewFloat64Column(ColPrecipitation, []float64{0, 0}, nil),
		table.NewFloat64Column(ColTemperature, []float64{0, math.NaN()}, []bool{true, false}),
		table.NewInt64Column(ColIsHoliday, []int64{1, 0}),
	)
	require.NoError(t, err)

	out, stats, err := NewBuilder().BuildWithStats(tbl)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DroppedRows)
	assert.Equal(t, []int64{1}, mustInts(t, out, ColHour))
	assert.Equal(t, []int64{DayTypeHoliday}, mustInts(t, out, ColDayType))
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-04T08:00:00Z":          time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		"2024-03-04T08:00:00+09:00":     time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC),
		"2024-03-04 08:00:00.5":         time.Date(2024, 3, 4, 8, 0, 0, 500_000_000, time.UTC),
		"2024-03-04 08:00:00+00:00":     time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		" 2024-03-04 08:15 ":            time.Date(2024, 3, 4, 8, 15, 0, 0, time.UTC),
		"2024-03-04":                    time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		"2024-03-04T08:00:00.123456789Z": time.Date(2024, 3, 4, 8, 0, 0, 123456789, time.UTC),
		"2024-03-04T08:00:00+0900":       time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC),
		"2024-03-04 08:00:00.25-0130":    time.Date(2024, 3, 4, 9, 30, 0, 250_000_000, time.UTC),
		"2024-03-04T08:00":               time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		"2024-03-04T08:00Z":              time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		"2024-03-04T08:00+02:00":         time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC),
		"2024-03-04 08:00:00 +00:00":     time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		"2024-03-04 08:00:00 -05:00":     time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC),
		"2024-03-04 08:00:00 UTC":        time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC),
		"2024-03-04 08:00:00.5 GMT":      time.Date(2024, 3, 4, 8, 0, 0, 500_000_000, time.UTC),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %s", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	for _, in := range []string{"not-a-date", "2024-03-04 08:00:00 PST", "2024-13-04T08:00"} {
		_, err := ParseTimestamp(in)
		assert.ErrorIs(t, err, exception.ErrTimestampParse, in)
	}
}
