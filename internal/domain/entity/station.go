// Package entity holds the Parquet record layout of the feature table.
package entity

// StationFeature is one row of the feature table, partitioned by station_id on write.
// Nullable features are pointers. Timestamp is microseconds since the Unix epoch.
type StationFeature struct {
	StationID            string   `parquet:"name=station_id,type=BYTE_ARRAY,convertedtype=UTF8,encoding=PLAIN_DICTIONARY"`
	Timestamp            int64    `parquet:"name=timestamp,type=INT64,convertedtype=TIMESTAMP_MICROS"`
	Departure            *float64 `parquet:"name=departure,type=DOUBLE,repetitiontype=OPTIONAL"`
	Precipitation        *float64 `parquet:"name=precipitation,type=DOUBLE,repetitiontype=OPTIONAL"`
	Temperature          *float64 `parquet:"name=temperature,type=DOUBLE,repetitiontype=OPTIONAL"`
	IsHoliday            bool     `parquet:"name=is_holiday,type=BOOLEAN"`
	Hour                 int32    `parquet:"name=hour,type=INT32"`
	DayOfWeek            int32    `parquet:"name=day_of_week,type=INT32"`
	Month                int32    `parquet:"name=month,type=INT32"`
	WeekOfYear           int32    `parquet:"name=week_of_year,type=INT32"`
	IsWeekend            int32    `parquet:"name=is_weekend,type=INT32"`
	PrevDepartures       *float64 `parquet:"name=prev_departures,type=DOUBLE,repetitiontype=OPTIONAL"`
	RollingMeanDeparture *float64 `parquet:"name=rolling_mean_departure,type=DOUBLE,repetitiontype=OPTIONAL"`
	StationAvgDeparture  *float64 `parquet:"name=station_avg_departure,type=DOUBLE,repetitiontype=OPTIONAL"`
	DayType              int32    `parquet:"name=day_type,type=INT32"`
	TemperatureSquared   *float64 `parquet:"name=temperature_squared,type=DOUBLE,repetitiontype=OPTIONAL"`
	HourXWeekend         int32    `parquet:"name=hour_x_weekend,type=INT32"`
}

// Float returns a pointer to v, or nil when ok is false.
func Float(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
