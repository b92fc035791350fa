package consumer

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

// columnKind selects the coercion and storage used for a column.
type columnKind int

const (
	kindDate columnKind = iota
	kindInt16
	kindInt32
	kindClock
	kindTimestamp
	kindFloat64
	kindBool
)

// ColumnDef declares one output column.
type ColumnDef struct {
	Name     string
	Type     arrow.DataType
	Nullable bool
	SQLType  string
	kind     columnKind
}

// FlightColumns is the declared output schema in column order.
var FlightColumns = []ColumnDef{
	{Name: processor.ColFlightDate, Type: arrow.FixedWidthTypes.Date32, Nullable: false, SQLType: "DATE", kind: kindDate},
	{Name: processor.ColDepartureDelay, Type: arrow.PrimitiveTypes.Int16, Nullable: true, SQLType: "SMALLINT", kind: kindInt16},
	{Name: processor.ColArrivalDelay, Type: arrow.PrimitiveTypes.Int16, Nullable: true, SQLType: "SMALLINT", kind: kindInt16},
	{Name: processor.ColAirTimeMinutes, Type: arrow.PrimitiveTypes.Int16, Nullable: true, SQLType: "SMALLINT", kind: kindInt16},
	{Name: processor.ColDistanceMiles, Type: arrow.PrimitiveTypes.Int32, Nullable: true, SQLType: "INTEGER", kind: kindInt32},
	{Name: processor.ColDepartureTimeDecimal, Type: arrow.BinaryTypes.String, Nullable: true, SQLType: "TEXT", kind: kindClock},
	{Name: processor.ColArrivalTimeDecimal, Type: arrow.BinaryTypes.String, Nullable: true, SQLType: "TEXT", kind: kindClock},
	{Name: processor.ColFlightDatetime, Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true, SQLType: "TIMESTAMP", kind: kindTimestamp},
	{Name: processor.ColAverageSpeed, Type: arrow.PrimitiveTypes.Float64, Nullable: true, SQLType: "DOUBLE PRECISION", kind: kindFloat64},
	{Name: processor.ColTotalDelay, Type: arrow.PrimitiveTypes.Int16, Nullable: true, SQLType: "SMALLINT", kind: kindInt16},
	{Name: processor.ColOnTime, Type: arrow.FixedWidthTypes.Boolean, Nullable: false, SQLType: "BOOLEAN", kind: kindBool},
	{Name: processor.ColDayOfWeek, Type: arrow.PrimitiveTypes.Int16, Nullable: true, SQLType: "SMALLINT", kind: kindInt16},
	{Name: processor.ColDayOfMonth, Type: arrow.PrimitiveTypes.Int16, Nullable: true, SQLType: "SMALLINT", kind: kindInt16},
	{Name: processor.ColMonth, Type: arrow.PrimitiveTypes.Int16, Nullable: true, SQLType: "SMALLINT", kind: kindInt16},
}

// FlightSchema returns the Arrow schema of the output table.
func FlightSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(FlightColumns))
	for i, col := range FlightColumns {
		fields[i] = arrow.Field{Name: col.Name, Type: col.Type, Nullable: col.Nullable}
	}
	return arrow.NewSchema(fields, nil)
}

// FlightColumnNames returns the output column names in order.
func FlightColumnNames() []string {
	names := make([]string, len(FlightColumns))
	for i, col := range FlightColumns {
		names[i] = col.Name
	}
	return names
}

func lookupColumn(name string) (ColumnDef, bool) {
	for _, col := range FlightColumns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDef{}, false
}
