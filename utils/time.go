package utils

import (
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowRFC3339 returns the current UTC time in RFC3339 format
func UTCNowRFC3339() string {
	return UTCNow().Format(time.RFC3339)
}

// StartOfDay truncates t to midnight UTC of the same calendar day
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfMonth truncates t to the first instant of its calendar month in UTC
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns midnight UTC of the Monday on or before t
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfQuarter returns the first instant of the calendar quarter containing t
func StartOfQuarter(t time.Time) time.Time {
	t = t.UTC()
	firstMonth := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(firstMonth), 1, 0, 0, 0, 0, time.UTC)
}

// DayKey formats t as YYYY-MM-DD in UTC
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MonthKey formats t as YYYY-MM in UTC
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
