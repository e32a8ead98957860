package finance

import "time"

// DateLayout is the yyyy-MM-dd layout used for ledger dates and lock comparisons.
const DateLayout = "2006-01-02"

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as yyyy-MM-dd in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses yyyy-MM-dd.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Truncate drops the time-of-day part.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

// AddMonths shifts t by n calendar months, clamping the day to the length of the
// target month (Mar 31 minus one month is Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// DaysBetween is the absolute number of whole days between two dates.
func DaysBetween(a, b time.Time) int {
	diff := Truncate(a).Sub(Truncate(b)).Hours() / 24
	if diff < 0 {
		diff = -diff
	}
	return int(diff + 0.5)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
