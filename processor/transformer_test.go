package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordOf(pairs ...interface{}) *Record {
	r := NewRecord()
	for i := 0; i < len(pairs); i += 2 {
		r.Set(pairs[i].(string), pairs[i+1].(Value))
	}
	return r
}

func quietTransformer() *Transformer {
	d := NewDiagnostics()
	d.SetQuiet(true)
	return NewTransformer(d)
}

func date(y int, m time.Month, d int) Value {
	return DateValue(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func TestParseDate(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf("FL_DATE", StringValue("2015-01-01")),
		recordOf("FL_DATE", StringValue("garbage")),
		recordOf("FL_DATE", StringValue("")),
		recordOf("FL_DATE", Null),
		recordOf("OTHER", IntValue(1)),
		recordOf("FL_DATE", DatetimeValue(time.Date(2015, 2, 3, 4, 5, 0, 0, time.UTC))),
		recordOf("FL_DATE", IntValue(20150101)),
	}

	tr.ParseDate(records, FieldFlDate)

	assert.True(t, records[0].Value(FieldFlDate).Equal(date(2015, 1, 1)))
	assert.True(t, records[1].Value(FieldFlDate).IsNull())
	assert.True(t, records[2].Value(FieldFlDate).IsNull())
	assert.True(t, records[3].Value(FieldFlDate).IsNull())
	assert.False(t, records[4].Has(FieldFlDate))
	assert.True(t, records[5].Value(FieldFlDate).Equal(date(2015, 2, 3)))
	assert.True(t, records[6].Value(FieldFlDate).IsNull())

	entries := tr.Diagnostics().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, StepParseDate, entries[0].Step)
	assert.Equal(t, "garbage", entries[0].Value)
	assert.Equal(t, 6, entries[1].Index)
}

func TestParseDateIsIdempotent(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{recordOf("FL_DATE", StringValue("2015-07-04"))}

	tr.ParseDate(records, FieldFlDate)
	first := records[0].Value(FieldFlDate)
	tr.ParseDate(records, FieldFlDate)

	assert.True(t, first.Equal(records[0].Value(FieldFlDate)))
	assert.Equal(t, 0, tr.Diagnostics().Len())
}

func TestParseDecimalTime(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		want     Value
		wantDiag bool
	}{
		{"literal minutes", FloatValue(13.45), TimeValue(13, 45), false},
		{"single decimal digit", FloatValue(9.5), TimeValue(9, 50), false},
		{"integer hour", IntValue(7), TimeValue(7, 0), false},
		{"zero int", IntValue(0), Null, false},
		{"zero float", FloatValue(0), Null, false},
		{"just after midnight", FloatValue(0.05), TimeValue(0, 5), false},
		{"numeric string", StringValue("8.45"), TimeValue(8, 45), false},
		{"clock string", StringValue("08:45"), TimeValue(8, 45), false},
		{"already time", TimeValue(1, 2), TimeValue(1, 2), false},
		{"minutes out of range", FloatValue(12.75), Null, true},
		{"hour out of range", FloatValue(25.1), Null, true},
		{"negative", FloatValue(-1), Null, true},
		{"not a number", StringValue("noon"), Null, true},
		{"bool", BoolValue(true), Null, true},
		{"empty string", StringValue(""), Null, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := quietTransformer()
			records := Sequence{recordOf("DEP_TIME", tt.input)}
			tr.ParseDecimalTime(records, FieldDepTime)

			got := records[0].Value(FieldDepTime)
			assert.True(t, tt.want.Equal(got), "got %s %v", got.Kind(), got)
			if tt.wantDiag {
				assert.Equal(t, 1, tr.Diagnostics().Len())
			} else {
				assert.Equal(t, 0, tr.Diagnostics().Len())
			}
		})
	}
}

func TestParseDecimalTimeSkipsMissing(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{recordOf("X", IntValue(1)), recordOf("DEP_TIME", Null)}
	tr.ParseDecimalTime(records, FieldDepTime)
	assert.False(t, records[0].Has(FieldDepTime))
	assert.True(t, records[1].Value(FieldDepTime).IsNull())
	assert.Equal(t, 0, tr.Diagnostics().Len())
}

func TestCombineDatetime(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf("FL_DATE", date(2015, 1, 1), "DEP_TIME", TimeValue(8, 45)),
		recordOf("FL_DATE", Null, "DEP_TIME", TimeValue(8, 45)),
		recordOf("FL_DATE", date(2015, 1, 1), "DEP_TIME", Null),
		recordOf("FL_DATE", StringValue("soon"), "DEP_TIME", TimeValue(8, 45)),
	}

	tr.CombineDatetime(records, FieldFlDate, FieldDepTime, ColFlightDatetime)

	got, ok := records[0].Value(ColFlightDatetime).Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2015, 1, 1, 8, 45, 0, 0, time.UTC), got)
	assert.Equal(t, KindDatetime, records[0].Value(ColFlightDatetime).Kind())

	assert.False(t, records[1].Has(ColFlightDatetime))
	assert.False(t, records[2].Has(ColFlightDatetime))

	assert.True(t, records[3].Has(ColFlightDatetime))
	assert.True(t, records[3].Value(ColFlightDatetime).IsNull())
	assert.Equal(t, 1, tr.Diagnostics().Len())
}

func TestComputeAverageSpeed(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf("DISTANCE", IntValue(300), "AIR_TIME", IntValue(60)),
		recordOf("DISTANCE", IntValue(300), "AIR_TIME", IntValue(0)),
		recordOf("DISTANCE", IntValue(0), "AIR_TIME", IntValue(60)),
		recordOf("DISTANCE", FloatValue(200.9), "AIR_TIME", FloatValue(40.7)),
		recordOf("DISTANCE", IntValue(300), "AIR_TIME", FloatValue(0.5)),
		recordOf("DISTANCE", StringValue("far"), "AIR_TIME", IntValue(60)),
		recordOf("DISTANCE", IntValue(300)),
	}

	tr.ComputeAverageSpeed(records, FieldDistance, FieldAirTime, ColAverageSpeed)

	assert.True(t, records[0].Value(ColAverageSpeed).Equal(FloatValue(300.0)))
	assert.False(t, records[1].Has(ColAverageSpeed))
	assert.False(t, records[2].Has(ColAverageSpeed))
	assert.True(t, records[3].Value(ColAverageSpeed).Equal(FloatValue(300.0)))
	assert.True(t, records[4].Has(ColAverageSpeed))
	assert.True(t, records[4].Value(ColAverageSpeed).IsNull())
	assert.True(t, records[5].Value(ColAverageSpeed).IsNull())
	assert.False(t, records[6].Has(ColAverageSpeed))

	entries := tr.Diagnostics().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "division by zero", entries[0].Reason)
	assert.Equal(t, 4, entries[0].Index)
	assert.Equal(t, 5, entries[1].Index)
}

func TestComputeTotalDelay(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf("DEP_DELAY", Null, "ARR_DELAY", IntValue(5)),
		recordOf("DEP_DELAY", Null, "ARR_DELAY", Null),
		recordOf("DEP_DELAY", IntValue(-3), "ARR_DELAY", IntValue(5)),
		recordOf("DEP_DELAY", FloatValue(2.9), "ARR_DELAY", StringValue("4")),
		recordOf("ARR_DELAY", IntValue(7)),
		recordOf("DEP_DELAY", StringValue("late"), "ARR_DELAY", IntValue(1)),
	}

	tr.ComputeTotalDelay(records, FieldDepDelay, FieldArrDelay, ColTotalDelay)

	assert.True(t, records[0].Value(ColTotalDelay).Equal(IntValue(5)))
	assert.True(t, records[1].Value(ColTotalDelay).Equal(IntValue(0)))
	assert.True(t, records[2].Value(ColTotalDelay).Equal(IntValue(2)))
	assert.True(t, records[3].Value(ColTotalDelay).Equal(IntValue(6)))
	assert.True(t, records[4].Value(ColTotalDelay).Equal(IntValue(7)))
	assert.True(t, records[5].Value(ColTotalDelay).IsNull())
	assert.Equal(t, 1, tr.Diagnostics().Len())

	// null inputs are written back as 0, missing ones stay missing
	assert.True(t, records[0].Value(FieldDepDelay).Equal(IntValue(0)))
	assert.True(t, records[1].Value(FieldDepDelay).Equal(IntValue(0)))
	assert.True(t, records[1].Value(FieldArrDelay).Equal(IntValue(0)))
	assert.True(t, records[2].Value(FieldDepDelay).Equal(IntValue(-3)))
	assert.False(t, records[4].Has(FieldDepDelay))
}

func TestComputeOnTime(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf("total_delay", IntValue(0)),
		recordOf("total_delay", IntValue(3)),
		recordOf("total_delay", IntValue(-4)),
		recordOf("total_delay", Null),
		recordOf("total_delay", StringValue("3")),
	}

	tr.ComputeOnTime(records, ColOnTime, ColTotalDelay)

	assert.True(t, records[0].Value(ColOnTime).Equal(IntValue(1)))
	assert.True(t, records[1].Value(ColOnTime).Equal(IntValue(0)))
	assert.True(t, records[2].Value(ColOnTime).Equal(IntValue(1)))
	assert.True(t, records[3].Value(ColOnTime).Equal(IntValue(1)))
	assert.True(t, records[4].Value(ColOnTime).IsNull())
	assert.Equal(t, 1, tr.Diagnostics().Len())

	assert.True(t, records[3].Value(ColTotalDelay).Equal(IntValue(0)))
	assert.True(t, records[1].Value(ColTotalDelay).Equal(IntValue(3)))
}

func TestDateComponents(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf("FL_DATE", date(2015, 1, 1)),   // Thursday
		recordOf("FL_DATE", date(2015, 1, 4)),   // Sunday
		recordOf("FL_DATE", date(2015, 12, 28)), // Monday
		recordOf("FL_DATE", Null),
		recordOf("FL_DATE", StringValue("2015-01-01")),
	}

	tr.ComputeDayOfWeek(records, FieldFlDate, ColDayOfWeek)
	tr.ComputeDayOfMonth(records, FieldFlDate, ColDayOfMonth)
	tr.ComputeMonth(records, FieldFlDate, ColMonth)

	assert.True(t, records[0].Value(ColDayOfWeek).Equal(IntValue(3)))
	assert.True(t, records[1].Value(ColDayOfWeek).Equal(IntValue(6)))
	assert.True(t, records[2].Value(ColDayOfWeek).Equal(IntValue(0)))
	assert.True(t, records[2].Value(ColDayOfMonth).Equal(IntValue(28)))
	assert.True(t, records[2].Value(ColMonth).Equal(IntValue(12)))

	assert.False(t, records[3].Has(ColDayOfWeek))
	assert.False(t, records[3].Has(ColMonth))

	assert.True(t, records[4].Value(ColDayOfWeek).IsNull())
	assert.True(t, records[4].Value(ColDayOfMonth).IsNull())
	assert.True(t, records[4].Value(ColMonth).IsNull())
	assert.Equal(t, 3, tr.Diagnostics().Len())
}

func TestRenameFields(t *testing.T) {
	tr := quietTransformer()
	full := NewRecord()
	for _, entry := range RenameTable {
		full.Set(entry.Old, IntValue(1))
	}
	full.Set("EXTRA", IntValue(2))
	partial := recordOf("FL_DATE", IntValue(1))

	tr.RenameFields(Sequence{full, partial})

	for _, entry := range RenameTable {
		assert.False(t, full.Has(entry.Old), entry.Old)
		assert.True(t, full.Has(entry.New), entry.New)
	}
	assert.True(t, full.Has("EXTRA"))
	assert.Equal(t, []string{ColFlightDate}, partial.Keys())
}

func TestEnsureColumns(t *testing.T) {
	tr := quietTransformer()
	r := recordOf(ColOnTime, IntValue(1))
	tr.EnsureColumns(Sequence{r}, OutputColumns)

	assert.Equal(t, len(OutputColumns), r.Len())
	assert.True(t, r.Value(ColOnTime).Equal(IntValue(1)))
	assert.True(t, r.Value(ColMonth).IsNull())
}

func TestRunEndToEnd(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf(
			"FL_DATE", StringValue("2015-01-01"),
			"DEP_TIME", FloatValue(8.45),
			"ARR_TIME", FloatValue(9.02),
			"DEP_DELAY", IntValue(-3),
			"ARR_DELAY", IntValue(5),
			"DISTANCE", IntValue(200),
			"AIR_TIME", IntValue(40),
		),
	}

	require.NoError(t, tr.Run(context.Background(), records))
	r := records[0]

	assert.True(t, r.Value(ColFlightDate).Equal(date(2015, 1, 1)))
	assert.Equal(t, "08:45", r.Value(ColDepartureTimeDecimal).String())
	assert.Equal(t, "09:02", r.Value(ColArrivalTimeDecimal).String())
	assert.True(t, r.Value(ColTotalDelay).Equal(IntValue(2)))
	assert.True(t, r.Value(ColOnTime).Equal(IntValue(0)))
	assert.True(t, r.Value(ColDayOfWeek).Equal(IntValue(3)))
	assert.True(t, r.Value(ColAverageSpeed).Equal(FloatValue(300.0)))
	assert.Equal(t, "2015-01-01 08:45:00", r.Value(ColFlightDatetime).String())
	assert.Equal(t, 0, tr.Diagnostics().Len())

	for _, entry := range RenameTable {
		assert.False(t, r.Has(entry.Old))
	}
	for _, col := range OutputColumns {
		assert.True(t, r.Has(col), col)
	}
}

func TestRunZeroDepartureTimeAndNullDelay(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf(
			"FL_DATE", StringValue("2015-01-01"),
			"DEP_TIME", IntValue(0),
			"ARR_TIME", FloatValue(0.3),
			"DEP_DELAY", Null,
			"ARR_DELAY", IntValue(4),
		),
	}

	require.NoError(t, tr.Run(context.Background(), records))
	r := records[0]

	assert.True(t, r.Value(ColDepartureTimeDecimal).IsNull())
	assert.Equal(t, "00:30", r.Value(ColArrivalTimeDecimal).String())
	assert.True(t, r.Value(ColFlightDatetime).IsNull())
	assert.True(t, r.Value(ColDepartureDelay).Equal(IntValue(0)))
	assert.True(t, r.Value(ColTotalDelay).Equal(IntValue(4)))
	assert.True(t, r.Value(ColOnTime).Equal(IntValue(0)))
	assert.Equal(t, 0, tr.Diagnostics().Len())
}

func TestRunGivesEveryRecordTheSameKeys(t *testing.T) {
	tr := quietTransformer()
	records := Sequence{
		recordOf("FL_DATE", StringValue("2015-01-01"), "AIR_TIME", IntValue(0), "DISTANCE", IntValue(10)),
		recordOf("FL_DATE", StringValue("bad date")),
		recordOf(),
	}

	require.NoError(t, tr.Run(context.Background(), records))
	first := records[0].Keys()
	for _, r := range records[1:] {
		assert.ElementsMatch(t, first, r.Keys())
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := Sequence{recordOf("FL_DATE", StringValue("2015-01-01"))}
	err := quietTransformer().Run(ctx, records)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, records[0].Has(FieldFlDate))
}
