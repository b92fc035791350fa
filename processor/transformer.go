package processor

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/withObsrvr/flight-pipeline-workflow/utils"
)

// Step names used in diagnostics.
const (
	StepParseDate        = "parse_date"
	StepParseDecimalTime = "parse_decimal_time"
	StepCombineDatetime  = "combine_datetime"
	StepAverageSpeed     = "compute_average_speed"
	StepTotalDelay       = "compute_total_delay"
	StepOnTime           = "compute_on_time"
	StepDayOfWeek        = "compute_day_of_week"
	StepDayOfMonth       = "compute_day_of_month"
	StepMonth            = "compute_month"
	StepRenameFields     = "rename_fields"
	StepEnsureColumns    = "ensure_columns"
)

// Transformer applies the flight field derivations to a record sequence in
// place. Each step visits every record once and never removes or reorders
// records. Per-record failures go to the diagnostics sink and null the
// target field.
type Transformer struct {
	diags *Diagnostics
	debug bool
}

func NewTransformer(diags *Diagnostics) *Transformer {
	if diags == nil {
		diags = NewDiagnostics()
	}
	return &Transformer{diags: diags}
}

// SetDebug enables per-step timing logs.
func (t *Transformer) SetDebug(debug bool) {
	t.debug = debug
}

func (t *Transformer) Diagnostics() *Diagnostics { return t.diags }

// Run executes the full derivation pipeline. Date and time parsing run
// before anything that reads them, and renaming runs last but one since
// every earlier step addresses the upstream field names.
func (t *Transformer) Run(ctx context.Context, records Sequence) error {
	steps := []struct {
		name string
		fn   func()
	}{
		{StepParseDate, func() { t.ParseDate(records, FieldFlDate) }},
		{StepParseDecimalTime, func() {
			t.ParseDecimalTime(records, FieldDepTime)
			t.ParseDecimalTime(records, FieldArrTime)
		}},
		{StepCombineDatetime, func() { t.CombineDatetime(records, FieldFlDate, FieldDepTime, ColFlightDatetime) }},
		{StepAverageSpeed, func() { t.ComputeAverageSpeed(records, FieldDistance, FieldAirTime, ColAverageSpeed) }},
		{StepTotalDelay, func() { t.ComputeTotalDelay(records, FieldDepDelay, FieldArrDelay, ColTotalDelay) }},
		{StepOnTime, func() { t.ComputeOnTime(records, ColOnTime, ColTotalDelay) }},
		{StepDayOfWeek, func() { t.ComputeDayOfWeek(records, FieldFlDate, ColDayOfWeek) }},
		{StepDayOfMonth, func() { t.ComputeDayOfMonth(records, FieldFlDate, ColDayOfMonth) }},
		{StepMonth, func() { t.ComputeMonth(records, FieldFlDate, ColMonth) }},
		{StepRenameFields, func() { t.RenameFields(records) }},
		{StepEnsureColumns, func() { t.EnsureColumns(records, OutputColumns) }},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("transform interrupted before %s: %w", step.name, err)
		}
		start := time.Now()
		step.fn()
		if t.debug {
			log.Printf("TransformFlights: %s over %d records took %s", step.name, len(records), time.Since(start))
		}
	}
	return nil
}

// ParseDate turns the string at key into a calendar date. Dates are left
// as is and datetimes are truncated. Empty or falsy values become null
// without a diagnostic.
func (t *Transformer) ParseDate(records Sequence, key string) {
	for i, r := range records {
		v, ok := r.Get(key)
		if !ok || v.IsNull() {
			continue
		}
		switch v.Kind() {
		case KindDate:
			continue
		case KindDatetime:
			ts, _ := v.Time()
			r.Set(key, DateValue(ts))
		case KindString:
			s, _ := v.Str()
			if strings.TrimSpace(s) == "" {
				r.Set(key, Null)
				continue
			}
			d, err := utils.ParseFlexibleDate(s)
			if err != nil {
				t.fail(r, i, StepParseDate, key, v, err.Error())
				continue
			}
			r.Set(key, DateValue(d))
		default:
			if !v.Truthy() {
				r.Set(key, Null)
				continue
			}
			t.fail(r, i, StepParseDate, key, v, fmt.Sprintf("cannot parse %s as date", v.Kind()))
		}
	}
}

// ParseDecimalTime reads an HH.MM number (or numeric string) into a time
// of day. A numeric 0 becomes null.
func (t *Transformer) ParseDecimalTime(records Sequence, key string) {
	for i, r := range records {
		v, ok := r.Get(key)
		if !ok || v.IsNull() {
			continue
		}

		var (
			hour, minute int
			err          error
		)
		switch v.Kind() {
		case KindTime:
			continue
		case KindInt, KindFloat:
			if !v.Truthy() {
				// 0 means no recorded time, not midnight.
				r.Set(key, Null)
				continue
			}
			n, _ := v.Number()
			hour, minute, err = utils.ParseDecimalClock(n)
		case KindString:
			s, _ := v.Str()
			switch {
			case strings.TrimSpace(s) == "":
				r.Set(key, Null)
				continue
			case strings.Contains(s, ":"):
				hour, minute, err = utils.ParseClock(s)
			default:
				hour, minute, err = utils.ParseDecimalClockString(s)
			}
		default:
			err = fmt.Errorf("cannot parse %s as time", v.Kind())
		}

		if err != nil {
			t.fail(r, i, StepParseDecimalTime, key, v, err.Error())
			continue
		}
		r.Set(key, TimeValue(hour, minute))
	}
}

// CombineDatetime merges a date field and a time field into a datetime.
// When either source is null the derived field is left unset.
func (t *Transformer) CombineDatetime(records Sequence, dateKey, timeKey, newKey string) {
	for i, r := range records {
		d := r.Value(dateKey)
		tm := r.Value(timeKey)
		if !d.Truthy() || !tm.Truthy() {
			continue
		}

		timePart := tm.String()
		if tm.Kind() == KindTime {
			timePart += ":00"
		}
		combined := d.String() + " " + timePart
		dt, err := time.ParseInLocation("2006-01-02 15:04:05", combined, time.UTC)
		if err != nil {
			t.fail(r, i, StepCombineDatetime, newKey, StringValue(combined), "invalid datetime")
			continue
		}
		r.Set(newKey, DatetimeValue(dt))
	}
}

// ComputeAverageSpeed derives miles per hour from distance and air time in
// minutes. Both inputs are truncated to integers first. A falsy input
// leaves the field unset.
func (t *Transformer) ComputeAverageSpeed(records Sequence, distanceKey, timeKey, newKey string) {
	for i, r := range records {
		distance := r.Value(distanceKey)
		airTime := r.Value(timeKey)
		if !distance.Truthy() || !airTime.Truthy() {
			continue
		}

		minutes, err := truncateInt(airTime)
		if err != nil {
			t.fail(r, i, StepAverageSpeed, newKey, airTime, err.Error())
			continue
		}
		miles, err := truncateInt(distance)
		if err != nil {
			t.fail(r, i, StepAverageSpeed, newKey, distance, err.Error())
			continue
		}

		hours := float64(minutes) / 60
		if hours == 0 {
			t.fail(r, i, StepAverageSpeed, newKey, airTime, "division by zero")
			continue
		}
		r.Set(newKey, FloatValue(float64(miles)/hours))
	}
}

// ComputeTotalDelay sums the two delay fields as integers. A null delay
// field is overwritten with 0 before summing; a missing one counts as 0.
func (t *Transformer) ComputeTotalDelay(records Sequence, depKey, arrKey, newKey string) {
	for i, r := range records {
		dep := zeroNull(r, depKey)
		arr := zeroNull(r, arrKey)

		depMinutes, err := delayMinutes(dep)
		if err != nil {
			t.fail(r, i, StepTotalDelay, newKey, dep, err.Error())
			continue
		}
		arrMinutes, err := delayMinutes(arr)
		if err != nil {
			t.fail(r, i, StepTotalDelay, newKey, arr, err.Error())
			continue
		}
		r.Set(newKey, IntValue(depMinutes+arrMinutes))
	}
}

// ComputeOnTime sets newKey to 0 when the delay is positive and 1
// otherwise. A null delay is overwritten with 0.
func (t *Transformer) ComputeOnTime(records Sequence, newKey, delayKey string) {
	for i, r := range records {
		delay := zeroNull(r, delayKey)
		if delay.IsNull() {
			r.Set(newKey, IntValue(1))
			continue
		}
		n, ok := delay.Number()
		if !ok {
			t.fail(r, i, StepOnTime, newKey, delay, fmt.Sprintf("cannot compare %s with 0", delay.Kind()))
			continue
		}
		if n > 0 {
			r.Set(newKey, IntValue(0))
		} else {
			r.Set(newKey, IntValue(1))
		}
	}
}

// ComputeDayOfWeek stores the weekday with Monday as 0 and Sunday as 6.
func (t *Transformer) ComputeDayOfWeek(records Sequence, dateKey, newKey string) {
	t.dateComponent(records, StepDayOfWeek, dateKey, newKey, func(d time.Time) int64 {
		return int64((d.Weekday() + 6) % 7)
	})
}

func (t *Transformer) ComputeDayOfMonth(records Sequence, dateKey, newKey string) {
	t.dateComponent(records, StepDayOfMonth, dateKey, newKey, func(d time.Time) int64 {
		return int64(d.Day())
	})
}

func (t *Transformer) ComputeMonth(records Sequence, dateKey, newKey string) {
	t.dateComponent(records, StepMonth, dateKey, newKey, func(d time.Time) int64 {
		return int64(d.Month())
	})
}

func (t *Transformer) dateComponent(records Sequence, step, dateKey, newKey string, component func(time.Time) int64) {
	for i, r := range records {
		v := r.Value(dateKey)
		if !v.Truthy() {
			continue
		}
		d, ok := v.Time()
		if !ok {
			t.fail(r, i, step, newKey, v, fmt.Sprintf("%s value has no date components", v.Kind()))
			continue
		}
		r.Set(newKey, IntValue(component(d)))
	}
}

// RenameFields applies RenameTable to every record. Absent keys are
// skipped.
func (t *Transformer) RenameFields(records Sequence) {
	for _, r := range records {
		for _, entry := range RenameTable {
			r.Rename(entry.Old, entry.New)
		}
	}
}

// EnsureColumns adds every missing column as an explicit null so that all
// records share the same key set.
func (t *Transformer) EnsureColumns(records Sequence, columns []string) {
	for _, r := range records {
		for _, col := range columns {
			if !r.Has(col) {
				r.Set(col, Null)
			}
		}
	}
}

func (t *Transformer) fail(r *Record, index int, step, field string, v Value, reason string) {
	t.diags.Add(index, step, field, v, reason)
	r.Set(field, Null)
}

// truncateInt converts a numeric value to an integer by truncation toward
// zero. Numeric strings are accepted.
func truncateInt(v Value) (int64, error) {
	switch v.Kind() {
	case KindInt:
		i, _ := v.Int()
		return i, nil
	case KindFloat, KindBool:
		n, _ := v.Number()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("non-finite number %v", n)
		}
		return int64(n), nil
	case KindString:
		s, _ := v.Str()
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("%s value is not numeric", v.Kind())
	}
}

// zeroNull replaces a present null at key with 0 and returns the value.
func zeroNull(r *Record, key string) Value {
	v, ok := r.Get(key)
	if ok && v.IsNull() {
		v = IntValue(0)
		r.Set(key, v)
	}
	return v
}

func delayMinutes(v Value) (int64, error) {
	if v.IsNull() {
		return 0, nil
	}
	return truncateInt(v)
}
