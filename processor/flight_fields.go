package processor

// Upstream field names as they appear in the raw dataset.
const (
	FieldFlDate   = "FL_DATE"
	FieldDepDelay = "DEP_DELAY"
	FieldArrDelay = "ARR_DELAY"
	FieldAirTime  = "AIR_TIME"
	FieldDistance = "DISTANCE"
	FieldDepTime  = "DEP_TIME"
	FieldArrTime  = "ARR_TIME"
)

// Canonical output column names.
const (
	ColFlightDate           = "flight_date"
	ColDepartureDelay       = "departure_delay"
	ColArrivalDelay         = "arrival_delay"
	ColAirTimeMinutes       = "air_time_minutes"
	ColDistanceMiles        = "distance_miles"
	ColDepartureTimeDecimal = "departure_time_decimal"
	ColArrivalTimeDecimal   = "arrival_time_decimal"
	ColFlightDatetime       = "flight_datetime"
	ColAverageSpeed         = "average_speed"
	ColTotalDelay           = "total_delay"
	ColOnTime               = "on_time"
	ColDayOfWeek            = "day_of_week"
	ColDayOfMonth           = "day_of_month"
	ColMonth                = "month"
)

// RenameEntry maps an upstream field to its canonical column.
type RenameEntry struct {
	Old string
	New string
}

// RenameTable is applied in order by RenameFields.
var RenameTable = []RenameEntry{
	{FieldFlDate, ColFlightDate},
	{FieldDepDelay, ColDepartureDelay},
	{FieldArrDelay, ColArrivalDelay},
	{FieldAirTime, ColAirTimeMinutes},
	{FieldDistance, ColDistanceMiles},
	{FieldDepTime, ColDepartureTimeDecimal},
	{FieldArrTime, ColArrivalTimeDecimal},
}

// OutputColumns lists the table columns in output order.
var OutputColumns = []string{
	ColFlightDate,
	ColDepartureDelay,
	ColArrivalDelay,
	ColAirTimeMinutes,
	ColDistanceMiles,
	ColDepartureTimeDecimal,
	ColArrivalTimeDecimal,
	ColFlightDatetime,
	ColAverageSpeed,
	ColTotalDelay,
	ColOnTime,
	ColDayOfWeek,
	ColDayOfMonth,
	ColMonth,
}
