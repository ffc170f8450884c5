package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendarBoundaries(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)

	tests := []struct {
		name    string
		in      time.Time
		day     string
		week    string
		month   string
		quarter string
	}{
		{
			name:    "wednesday afternoon",
			in:      time.Date(2025, time.June, 18, 15, 4, 5, 0, time.UTC),
			day:     "2025-06-18",
			week:    "2025-06-16",
			month:   "2025-06-01",
			quarter: "2025-04-01",
		},
		{
			name:    "sunday belongs to the previous monday",
			in:      time.Date(2025, time.June, 22, 23, 59, 0, 0, time.UTC),
			day:     "2025-06-22",
			week:    "2025-06-16",
			month:   "2025-06-01",
			quarter: "2025-04-01",
		},
		{
			name:    "week crossing a year boundary",
			in:      time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC),
			day:     "2026-01-01",
			week:    "2025-12-29",
			month:   "2026-01-01",
			quarter: "2026-01-01",
		},
		{
			name:    "non-utc input is normalized first",
			in:      time.Date(2025, time.October, 1, 1, 0, 0, 0, tehran),
			day:     "2025-09-30",
			week:    "2025-09-29",
			month:   "2025-09-01",
			quarter: "2025-07-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.day, DayKey(StartOfDay(tt.in)))
			assert.Equal(t, tt.week, DayKey(StartOfWeek(tt.in)))
			assert.Equal(t, tt.month, DayKey(StartOfMonth(tt.in)))
			assert.Equal(t, tt.quarter, DayKey(StartOfQuarter(tt.in)))
			assert.Equal(t, time.UTC, StartOfDay(tt.in).Location())
		})
	}
}

func TestKeysAndHelpers(t *testing.T) {
	ts := time.Date(2025, time.March, 9, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-09", DayKey(ts))
	assert.Equal(t, "2025-03", MonthKey(ts))

	assert.Equal(t, "b", FirstNonEmpty("", "  ", " b ", "c"))
	assert.Equal(t, "", FirstNonEmpty())

	assert.True(t, IsTrue(ToPtr(true)))
	assert.False(t, IsTrue(nil))

	id, err := ParseUUID(" 6f1c2a8e-0d1b-4c47-9a4b-2f7f5c0e9b11 ")
	assert.NoError(t, err)
	assert.Equal(t, "6f1c2a8e-0d1b-4c47-9a4b-2f7f5c0e9b11", id.String())
}
