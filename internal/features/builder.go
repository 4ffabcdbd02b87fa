// Package features turns raw station event tables into the supervised-learning
// feature table consumed by the trainer.
//
// Build runs five stages over one owned copy of the input:
//
//  1. parse timestamps, dropping rows that do not parse
//  2. derive calendar features
//  3. sort by (station_id, timestamp) and derive lag and rolling features per station
//  4. broadcast the (station_id, hour) mean departure onto every row
//  5. derive composite features
//
// station_avg_departure is computed over the whole partition, future rows included.
package features

import (
	"sort"
	"time"

	"github.com/tigerroll/stationcast/internal/domain/table"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// BuildStats describes one Build.
type BuildStats struct {
	InputRows   int
	DroppedRows int
	OutputRows  int
	Stations    int
}

// Builder derives the feature columns. It holds no state between builds.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns the enriched table in (station_id, timestamp) order. raw is not modified.
func (b *Builder) Build(raw *table.Table) (*table.Table, error) {
	out, _, err := b.BuildWithStats(raw)
	return out, err
}

// BuildWithStats is Build that also reports row counts.
func (b *Builder) BuildWithStats(raw *table.Table) (*table.Table, BuildStats, error) {
	stats := BuildStats{InputRows: raw.NumRows()}
	if err := raw.Require(RequiredColumns...); err != nil {
		return nil, stats, err
	}

	tbl, err := parseTimestamps(raw.Clone(), &stats)
	if err != nil {
		return nil, stats, err
	}
	if err := addCalendarFeatures(tbl); err != nil {
		return nil, stats, err
	}
	tbl, err = sortByStationAndTime(tbl)
	if err != nil {
		return nil, stats, err
	}
	if stats.Stations, err = addLagFeatures(tbl); err != nil {
		return nil, stats, err
	}
	if err := addStationHourMean(tbl); err != nil {
		return nil, stats, err
	}
	if err := addCompositeFeatures(tbl); err != nil {
		return nil, stats, err
	}

	stats.OutputRows = tbl.NumRows()
	logger.Debugf("FeatureBuilder: %d rows in, %d dropped, %d stations.", stats.InputRows, stats.DroppedRows, stats.Stations)
	return tbl, stats, nil
}

// parseTimestamps replaces the timestamp column with UTC instants and drops the rows that fail to parse.
func parseTimestamps(tbl *table.Table, stats *BuildStats) (*table.Table, error) {
	col, err := tbl.Column(ColTimestamp)
	if err != nil {
		return nil, err
	}

	n := tbl.NumRows()
	parsed := make([]time.Time, n)
	keep := make([]int, 0, n)
	switch c := col.(type) {
	case *table.StringColumn:
		for i, s := range c.Values {
			ts, perr := ParseTimestamp(s)
			if perr != nil {
				logger.Debugf("FeatureBuilder: dropping row %d: %v", i, perr)
				continue
			}
			parsed[i] = ts
			keep = append(keep, i)
		}
	case *table.TimeColumn:
		for i, ts := range c.Values {
			if ts.IsZero() {
				continue
			}
			parsed[i] = ts.UTC()
			keep = append(keep, i)
		}
	default:
		return nil, exception.NewBatchErrorf("features", "column %q has unsupported kind %s", ColTimestamp, col.Kind())
	}

	if err := tbl.AddColumn(table.NewTimeColumn(ColTimestamp, parsed)); err != nil {
		return nil, err
	}
	stats.DroppedRows = n - len(keep)
	if stats.DroppedRows == 0 {
		return tbl, nil
	}
	return tbl.Take(keep), nil
}

func addCalendarFeatures(tbl *table.Table) error {
	ts, err := tbl.Times(ColTimestamp)
	if err != nil {
		return err
	}
	n := ts.Len()
	hour := make([]int64, n)
	dow := make([]int64, n)
	month := make([]int64, n)
	week := make([]int64, n)
	weekend := make([]int64, n)
	for i, t := range ts.Values {
		hour[i] = int64(t.Hour())
		// Monday is 0.
		dow[i] = int64((int(t.Weekday()) + 6) % 7)
		month[i] = int64(t.Month())
		_, isoWeek := t.ISOWeek()
		week[i] = int64(isoWeek)
		if dow[i] >= 5 {
			weekend[i] = 1
		}
	}
	return addAll(tbl,
		table.NewInt64Column(ColHour, hour),
		table.NewInt64Column(ColDayOfWeek, dow),
		table.NewInt64Column(ColMonth, month),
		table.NewInt64Column(ColWeekOfYear, week),
		table.NewInt64Column(ColIsWeekend, weekend),
	)
}

// sortByStationAndTime stably reorders every column by (station_id, timestamp).
func sortByStationAndTime(tbl *table.Table) (*table.Table, error) {
	stations, err := tbl.Strings(ColStationID)
	if err != nil {
		return nil, err
	}
	ts, err := tbl.Times(ColTimestamp)
	if err != nil {
		return nil, err
	}
	order := make([]int, tbl.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if stations.Values[ia] != stations.Values[ib] {
			return stations.Values[ia] < stations.Values[ib]
		}
		return ts.Values[ia].Before(ts.Values[ib])
	})
	return tbl.Take(order), nil
}

// addLagFeatures derives prev_departures and rolling_mean_departure within each station.
// tbl must already be sorted. It returns the number of stations.
func addLagFeatures(tbl *table.Table) (int, error) {
	stations, err := tbl.Strings(ColStationID)
	if err != nil {
		return 0, err
	}
	dep, err := NumericColumn(tbl, ColDeparture)
	if err != nil {
		return 0, err
	}

	n := tbl.NumRows()
	prev := table.NewNullFloat64Column(ColPrevDepartures, n)
	rolling := table.NewNullFloat64Column(ColRollingMeanDeparture, n)
	groups := 0
	start := 0
	for i := 0; i < n; i++ {
		if i == 0 || stations.Values[i] != stations.Values[i-1] {
			start = i
			groups++
		} else {
			prev.Values[i], prev.Valid[i] = dep.At(i - 1)
		}

		lo := i - rollingWindow + 1
		if lo < start {
			lo = start
		}
		sum, count := 0.0, 0
		for j := lo; j <= i; j++ {
			if v, ok := dep.At(j); ok {
				sum += v
				count++
			}
		}
		if count > 0 {
			rolling.Set(i, sum/float64(count))
		}
	}
	return groups, addAll(tbl, prev, rolling)
}

type stationHour struct {
	station string
	hour    int64
}

// addStationHourMean broadcasts the mean departure of each (station_id, hour) partition.
func addStationHourMean(tbl *table.Table) error {
	stations, err := tbl.Strings(ColStationID)
	if err != nil {
		return err
	}
	hours, err := tbl.Int64s(ColHour)
	if err != nil {
		return err
	}
	dep, err := NumericColumn(tbl, ColDeparture)
	if err != nil {
		return err
	}

	type acc struct {
		sum   float64
		count int
	}
	n := tbl.NumRows()
	groups := make(map[stationHour]*acc)
	for i := 0; i < n; i++ {
		key := stationHour{stations.Values[i], hours.Values[i]}
		a, ok := groups[key]
		if !ok {
			a = &acc{}
			groups[key] = a
		}
		if v, ok := dep.At(i); ok {
			a.sum += v
			a.count++
		}
	}

	avg := table.NewNullFloat64Column(ColStationAvgDeparture, n)
	for i := 0; i < n; i++ {
		a := groups[stationHour{stations.Values[i], hours.Values[i]}]
		if a.count > 0 {
			avg.Set(i, a.sum/float64(a.count))
		}
	}
	return tbl.AddColumn(avg)
}

func addCompositeFeatures(tbl *table.Table) error {
	holiday, err := FlagColumn(tbl, ColIsHoliday)
	if err != nil {
		return err
	}
	weekend, err := tbl.Int64s(ColIsWeekend)
	if err != nil {
		return err
	}
	hours, err := tbl.Int64s(ColHour)
	if err != nil {
		return err
	}
	temp, err := NumericColumn(tbl, ColTemperature)
	if err != nil {
		return err
	}

	n := tbl.NumRows()
	dayType := make([]int64, n)
	hourXWeekend := make([]int64, n)
	tempSq := table.NewNullFloat64Column(ColTemperatureSquared, n)
	for i := 0; i < n; i++ {
		dayType[i] = classifyDay(holiday[i], weekend.Values[i] == 1)
		hourXWeekend[i] = hours.Values[i] * weekend.Values[i]
		if v, ok := temp.At(i); ok {
			tempSq.Set(i, v*v)
		}
	}
	return addAll(tbl,
		table.NewInt64Column(ColDayType, dayType),
		tempSq,
		table.NewInt64Column(ColHourXWeekend, hourXWeekend),
	)
}

func classifyDay(holiday, weekend bool) int64 {
	switch {
	case holiday:
		return DayTypeHoliday
	case weekend:
		return DayTypeWeekend
	default:
		return DayTypeWeekday
	}
}

func addAll(tbl *table.Table, cols ...table.Column) error {
	for _, c := range cols {
		if err := tbl.AddColumn(c); err != nil {
			return err
		}
	}
	return nil
}
