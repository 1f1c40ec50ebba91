package types

import "time"

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// DayKey formats the calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return Day(t).Format(time.DateOnly)
}

// ParseDayKey parses a YYYY-MM-DD string into midnight UTC.
func ParseDayKey(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
