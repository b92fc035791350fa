package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseFlexibleDate parses a date string in any of the common layouts
// (ISO, US month/day, RFC formats, named months) and returns the calendar
// date at midnight UTC.
func ParseFlexibleDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", s, err)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// ParseDecimalClock reads a clock time encoded as HH.MM, where the digits
// after the decimal point are literal minutes: 13.45 is 13:45 and 9.5 is
// 09:50. The value is rounded to two decimal places first.
func ParseDecimalClock(v float64) (hour, minute int, err error) {
	if v < 0 {
		return 0, 0, fmt.Errorf("negative clock value %v", v)
	}
	formatted := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(formatted, ".")

	hour, err = strconv.Atoi(whole)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %s: %w", formatted, err)
	}
	minute, err = strconv.Atoi(frac)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %s: %w", formatted, err)
	}
	if hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range in %s", hour, formatted)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range in %s", minute, formatted)
	}
	return hour, minute, nil
}

// ParseDecimalClockString is ParseDecimalClock for numeric strings.
func ParseDecimalClockString(s string) (hour, minute int, err error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("not a number: %q", s)
	}
	return ParseDecimalClock(v)
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("invalid clock time %q", s)
}
