package features

// Raw event columns.
const (
	ColStationID     = "station_id"
	ColTimestamp     = "timestamp"
	ColDeparture     = "departure"
	ColPrecipitation = "precipitation"
	ColTemperature   = "temperature"
	ColIsHoliday     = "is_holiday"
)

// Derived columns, in output order.
const (
	ColHour                 = "hour"
	ColDayOfWeek            = "day_of_week"
	ColMonth                = "month"
	ColWeekOfYear           = "week_of_year"
	ColIsWeekend            = "is_weekend"
	ColPrevDepartures       = "prev_departures"
	ColRollingMeanDeparture = "rolling_mean_departure"
	ColStationAvgDeparture  = "station_avg_departure"
	ColDayType              = "day_type"
	ColTemperatureSquared   = "temperature_squared"
	ColHourXWeekend         = "hour_x_weekend"
)

// RequiredColumns must be present in every raw table.
var RequiredColumns = []string{
	ColStationID, ColTimestamp, ColDeparture, ColPrecipitation, ColTemperature, ColIsHoliday,
}

// DerivedColumns lists what Build appends.
var DerivedColumns = []string{
	ColHour, ColDayOfWeek, ColMonth, ColWeekOfYear, ColIsWeekend,
	ColPrevDepartures, ColRollingMeanDeparture, ColStationAvgDeparture,
	ColDayType, ColTemperatureSquared, ColHourXWeekend,
}

// FeatureColumns is the regressor input, in matrix column order.
var FeatureColumns = []string{
	ColPrecipitation, ColTemperature, ColIsHoliday,
	ColHour, ColDayOfWeek, ColMonth, ColWeekOfYear,
	ColIsWeekend, ColPrevDepartures, ColRollingMeanDeparture,
	ColStationAvgDeparture, ColDayType, ColTemperatureSquared,
	ColHourXWeekend,
}

// TargetColumn is the regression target.
const TargetColumn = ColDeparture

const rollingWindow = 3

// Day types; holiday takes precedence over weekend.
const (
	DayTypeHoliday int64 = 0
	DayTypeWeekend int64 = 1
	DayTypeWeekday int64 = 2
)
