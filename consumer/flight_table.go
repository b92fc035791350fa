package consumer

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/guregu/null"

	"github.com/withObsrvr/flight-pipeline-workflow/processor"
)

const (
	flightDateLayout     = "2006-01-02"
	flightDatetimeLayout = "2006-01-02 15:04"
)

// RequiredColumnError reports a null or malformed value in a column that
// does not allow nulls.
type RequiredColumnError struct {
	Row    int
	Column string
	Value  interface{}
}

func (e *RequiredColumnError) Error() string {
	return fmt.Sprintf("row %d: required column %s has invalid value %v", e.Row, e.Column, e.Value)
}

// InconsistentRecordError reports a record whose key set differs from the
// first record's.
type InconsistentRecordError struct {
	Row     int
	Missing []string
	Extra   []string
}

func (e *InconsistentRecordError) Error() string {
	return fmt.Sprintf("row %d: key set differs from first record (missing %v, extra %v)", e.Row, e.Missing, e.Extra)
}

// column holds the coerced values of one declared column. Only the slice
// matching the column kind is populated.
type column struct {
	def     ColumnDef
	ints    []null.Int
	floats  []null.Float
	strings []null.String
	times   []null.Time
	bools   []bool
}

// FlightTable is the typed, column-oriented form of a transformed record
// sequence.
type FlightTable struct {
	rows    int
	columns []*column
	byName  map[string]*column
	dropped []string
}

// FlightRow is one typed row of a FlightTable.
type FlightRow struct {
	FlightDate           time.Time
	DepartureDelay       null.Int
	ArrivalDelay         null.Int
	AirTimeMinutes       null.Int
	DistanceMiles        null.Int
	DepartureTimeDecimal null.String
	ArrivalTimeDecimal   null.String
	FlightDatetime       null.Time
	AverageSpeed         null.Float
	TotalDelay           null.Int
	OnTime               bool
	DayOfWeek            null.Int
	DayOfMonth           null.Int
	Month                null.Int
}

// BuildFlightTable pivots records into columns and coerces each declared
// column to its type. Nullable columns substitute null for values that
// cannot be coerced; required columns fail the build.
func BuildFlightTable(records processor.Sequence) (*FlightTable, error) {
	t := &FlightTable{
		rows:   len(records),
		byName: make(map[string]*column, len(FlightColumns)),
	}

	var keys []string
	if len(records) > 0 {
		keys = records[0].Keys()
		if err := checkRectangular(records, keys); err != nil {
			return nil, err
		}
	}

	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
		if _, ok := lookupColumn(k); !ok {
			t.dropped = append(t.dropped, k)
			log.Printf("FlightTable: dropping undeclared column %s", k)
		}
	}

	for _, def := range FlightColumns {
		if len(records) > 0 && !present[def.Name] {
			if !def.Nullable {
				return nil, &RequiredColumnError{Row: 0, Column: def.Name, Value: nil}
			}
			log.Printf("FlightTable: column %s missing from input, filling with nulls", def.Name)
		}
		col, err := buildColumn(def, records)
		if err != nil {
			return nil, err
		}
		t.columns = append(t.columns, col)
		t.byName[def.Name] = col
	}
	return t, nil
}

func checkRectangular(records processor.Sequence, keys []string) error {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	for i, r := range records[1:] {
		if r.Len() == len(keys) {
			same := true
			for _, k := range keys {
				if !r.Has(k) {
					same = false
					break
				}
			}
			if same {
				continue
			}
		}
		var missing, extra []string
		for _, k := range keys {
			if !r.Has(k) {
				missing = append(missing, k)
			}
		}
		for _, k := range r.Keys() {
			if !want[k] {
				extra = append(extra, k)
			}
		}
		sort.Strings(missing)
		sort.Strings(extra)
		return &InconsistentRecordError{Row: i + 1, Missing: missing, Extra: extra}
	}
	return nil
}

func buildColumn(def ColumnDef, records processor.Sequence) (*column, error) {
	col := &column{def: def}
	n := len(records)
	switch def.kind {
	case kindDate:
		col.times = make([]null.Time, n)
	case kindInt16, kindInt32:
		col.ints = make([]null.Int, n)
	case kindClock:
		col.strings = make([]null.String, n)
	case kindTimestamp:
		col.times = make([]null.Time, n)
	case kindFloat64:
		col.floats = make([]null.Float, n)
	case kindBool:
		col.bools = make([]bool, n)
	}

	for i, r := range records {
		v := r.Value(def.Name)
		switch def.kind {
		case kindDate:
			d, ok := coerceDate(v)
			if !ok {
				return nil, &RequiredColumnError{Row: i, Column: def.Name, Value: v.Interface()}
			}
			col.times[i] = null.TimeFrom(d)
		case kindInt16:
			col.ints[i] = coerceInt(v, math.MinInt16, math.MaxInt16)
		case kindInt32:
			col.ints[i] = coerceInt(v, math.MinInt32, math.MaxInt32)
		case kindClock:
			col.strings[i] = coerceString(v)
		case kindTimestamp:
			col.times[i] = coerceTimestamp(v)
		case kindFloat64:
			col.floats[i] = coerceFloat(v)
		case kindBool:
			b, ok := coerceBool(v)
			if !ok {
				return nil, &RequiredColumnError{Row: i, Column: def.Name, Value: v.Interface()}
			}
			col.bools[i] = b
		}
	}
	return col, nil
}

func coerceDate(v processor.Value) (time.Time, bool) {
	switch v.Kind() {
	case processor.KindDate, processor.KindDatetime:
		t, _ := v.Time()
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	case processor.KindString:
		s, _ := v.Str()
		t, err := time.Parse(flightDateLayout, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func coerceInt(v processor.Value, lo, hi int64) null.Int {
	var (
		i  int64
		ok bool
	)
	switch v.Kind() {
	case processor.KindInt:
		i, ok = v.Int()
	case processor.KindFloat, processor.KindBool:
		f, _ := v.Number()
		i, ok = integral(f)
	case processor.KindString:
		s, _ := v.Str()
		s = strings.TrimSpace(s)
		if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
			i, ok = parsed, true
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			i, ok = integral(f)
		}
	}
	if !ok || i < lo || i > hi {
		return null.Int{}
	}
	return null.IntFrom(i)
}

func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func coerceString(v processor.Value) null.String {
	if v.IsNull() {
		return null.String{}
	}
	return null.StringFrom(v.String())
}

func coerceTimestamp(v processor.Value) null.Time {
	switch v.Kind() {
	case processor.KindDate, processor.KindDatetime:
		t, _ := v.Time()
		return null.TimeFrom(t.UTC().Truncate(time.Minute))
	case processor.KindString:
		s, _ := v.Str()
		t, err := time.Parse(flightDatetimeLayout, strings.TrimSpace(s))
		if err != nil {
			return null.Time{}
		}
		return null.TimeFrom(t)
	}
	return null.Time{}
}

func coerceFloat(v processor.Value) null.Float {
	if f, ok := v.Number(); ok {
		return null.FloatFrom(f)
	}
	if s, ok := v.Str(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return null.FloatFrom(f)
		}
	}
	return null.Float{}
}

func coerceBool(v processor.Value) (bool, bool) {
	switch v.Kind() {
	case processor.KindBool:
		b, _ := v.Bool()
		return b, true
	case processor.KindInt:
		i, _ := v.Int()
		switch i {
		case 0:
			return false, true
		case 1:
			return true, true
		}
	}
	return false, false
}

func (t *FlightTable) NumRows() int { return t.rows }

// DroppedColumns lists input keys that are not part of the output schema.
func (t *FlightTable) DroppedColumns() []string {
	return append([]string(nil), t.dropped...)
}

// Row returns the typed values of row i.
func (t *FlightTable) Row(i int) FlightRow {
	return FlightRow{
		FlightDate:           t.byName[processor.ColFlightDate].times[i].Time,
		DepartureDelay:       t.byName[processor.ColDepartureDelay].ints[i],
		ArrivalDelay:         t.byName[processor.ColArrivalDelay].ints[i],
		AirTimeMinutes:       t.byName[processor.ColAirTimeMinutes].ints[i],
		DistanceMiles:        t.byName[processor.ColDistanceMiles].ints[i],
		DepartureTimeDecimal: t.byName[processor.ColDepartureTimeDecimal].strings[i],
		ArrivalTimeDecimal:   t.byName[processor.ColArrivalTimeDecimal].strings[i],
		FlightDatetime:       t.byName[processor.ColFlightDatetime].times[i],
		AverageSpeed:         t.byName[processor.ColAverageSpeed].floats[i],
		TotalDelay:           t.byName[processor.ColTotalDelay].ints[i],
		OnTime:               t.byName[processor.ColOnTime].bools[i],
		DayOfWeek:            t.byName[processor.ColDayOfWeek].ints[i],
		DayOfMonth:           t.byName[processor.ColDayOfMonth].ints[i],
		Month:                t.byName[processor.ColMonth].ints[i],
	}
}

func (t *FlightTable) Rows() []FlightRow {
	rows := make([]FlightRow, t.rows)
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// NewRecord builds an Arrow record with FlightSchema. The caller must
// release it.
func (t *FlightTable) NewRecord(alloc memory.Allocator) (arrow.Record, error) {
	schema := FlightSchema()
	rb := array.NewRecordBuilder(alloc, schema)
	defer rb.Release()

	for j, col := range t.columns {
		field := rb.Field(j)
		switch col.def.kind {
		case kindDate:
			b, ok := field.(*array.Date32Builder)
			if !ok {
				return nil, fmt.Errorf("unexpected builder %T for %s", field, col.def.Name)
			}
			for _, v := range col.times {
				b.Append(arrow.Date32FromTime(v.Time))
			}
		case kindInt16:
			b, ok := field.(*array.Int16Builder)
			if !ok {
				return nil, fmt.Errorf("unexpected builder %T for %s", field, col.def.Name)
			}
			for _, v := range col.ints {
				if v.Valid {
					b.Append(int16(v.Int64))
				} else {
					b.AppendNull()
				}
			}
		case kindInt32:
			b, ok := field.(*array.Int32Builder)
			if !ok {
				return nil, fmt.Errorf("unexpected builder %T for %s", field, col.def.Name)
			}
			for _, v := range col.ints {
				if v.Valid {
					b.Append(int32(v.Int64))
				} else {
					b.AppendNull()
				}
			}
		case kindClock:
			b, ok := field.(*array.StringBuilder)
			if !ok {
				return nil, fmt.Errorf("unexpected builder %T for %s", field, col.def.Name)
			}
			for _, v := range col.strings {
				if v.Valid {
					b.Append(v.String)
				} else {
					b.AppendNull()
				}
			}
		case kindTimestamp:
			b, ok := field.(*array.TimestampBuilder)
			if !ok {
				return nil, fmt.Errorf("unexpected builder %T for %s", field, col.def.Name)
			}
			for _, v := range col.times {
				if v.Valid {
					b.Append(arrow.Timestamp(v.Time.UnixMicro()))
				} else {
					b.AppendNull()
				}
			}
		case kindFloat64:
			b, ok := field.(*array.Float64Builder)
			if !ok {
				return nil, fmt.Errorf("unexpected builder %T for %s", field, col.def.Name)
			}
			for _, v := range col.floats {
				if v.Valid {
					b.Append(v.Float64)
				} else {
					b.AppendNull()
				}
			}
		case kindBool:
			b, ok := field.(*array.BooleanBuilder)
			if !ok {
				return nil, fmt.Errorf("unexpected builder %T for %s", field, col.def.Name)
			}
			for _, v := range col.bools {
				b.Append(v)
			}
		}
	}
	return rb.NewRecord(), nil
}

// SQLValues returns the row as plain driver values in column order, with
// nil for nulls.
func (r FlightRow) SQLValues() []interface{} {
	return []interface{}{
		r.FlightDate,
		nullInt16(r.DepartureDelay),
		nullInt16(r.ArrivalDelay),
		nullInt16(r.AirTimeMinutes),
		nullInt32(r.DistanceMiles),
		nullString(r.DepartureTimeDecimal),
		nullString(r.ArrivalTimeDecimal),
		nullTime(r.FlightDatetime),
		nullFloat(r.AverageSpeed),
		nullInt16(r.TotalDelay),
		r.OnTime,
		nullInt16(r.DayOfWeek),
		nullInt16(r.DayOfMonth),
		nullInt16(r.Month),
	}
}

func nullInt16(v null.Int) interface{} {
	if !v.Valid {
		return nil
	}
	return int16(v.Int64)
}

func nullInt32(v null.Int) interface{} {
	if !v.Valid {
		return nil
	}
	return int32(v.Int64)
}

func nullString(v null.String) interface{} {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nullTime(v null.Time) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Time
}

func nullFloat(v null.Float) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

type flightRowJSON struct {
	FlightDate           string      `json:"flight_date"`
	DepartureDelay       null.Int    `json:"departure_delay"`
	ArrivalDelay         null.Int    `json:"arrival_delay"`
	AirTimeMinutes       null.Int    `json:"air_time_minutes"`
	DistanceMiles        null.Int    `json:"distance_miles"`
	DepartureTimeDecimal null.String `json:"departure_time_decimal"`
	ArrivalTimeDecimal   null.String `json:"arrival_time_decimal"`
	FlightDatetime       null.String `json:"flight_datetime"`
	AverageSpeed         null.Float  `json:"average_speed"`
	TotalDelay           null.Int    `json:"total_delay"`
	OnTime               bool        `json:"on_time"`
	DayOfWeek            null.Int    `json:"day_of_week"`
	DayOfMonth           null.Int    `json:"day_of_month"`
	Month                null.Int    `json:"month"`
}

// MarshalJSON writes dates as YYYY-MM-DD and datetimes as YYYY-MM-DD HH:MM.
func (r FlightRow) MarshalJSON() ([]byte, error) {
	var dt null.String
	if r.FlightDatetime.Valid {
		dt = null.StringFrom(r.FlightDatetime.Time.Format(flightDatetimeLayout))
	}
	return json.Marshal(flightRowJSON{
		FlightDate:           r.FlightDate.Format(flightDateLayout),
		DepartureDelay:       r.DepartureDelay,
		ArrivalDelay:         r.ArrivalDelay,
		AirTimeMinutes:       r.AirTimeMinutes,
		DistanceMiles:        r.DistanceMiles,
		DepartureTimeDecimal: r.DepartureTimeDecimal,
		ArrivalTimeDecimal:   r.ArrivalTimeDecimal,
		FlightDatetime:       dt,
		AverageSpeed:         r.AverageSpeed,
		TotalDelay:           r.TotalDelay,
		OnTime:               r.OnTime,
		DayOfWeek:            r.DayOfWeek,
		DayOfMonth:           r.DayOfMonth,
		Month:                r.Month,
	})
}
