// Package calendar holds the pure date and slot math the planner is built on.
// All functions are stateless; anything depending on the current moment takes
// it as an argument so tests can pin the clock.
package calendar

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the wire format for calendar dates. It is part of the storage
// contract and must round-trip exactly.
const DateLayout = "2006-01-02"

// MaxYear is the fixed upper bound for browsable months.
const MaxYear = 2030

func DaysInMonth(year int, month time.Month) int {
	// Day zero of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday index of day 1 with Monday=0 .. Sunday=6,
// used to compute leading blank cells in a month grid.
func FirstWeekday(year int, month time.Month) int {
	wd := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(wd) + 6) % 7
}

func FormatDate(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// ParseDate is the exact inverse of FormatDate.
func ParseDate(s string) (int, time.Month, int, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.Year(), t.Month(), t.Day(), nil
}

func IsToday(year int, month time.Month, day int, now time.Time) bool {
	y, m, d := now.Date()
	return year == y && month == m && day == d
}

// IsPastDate truncates the current time to midnight, so today is never past.
func IsPastDate(year int, month time.Month, day int, now time.Time) bool {
	date := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return date.Before(midnight)
}

// IsValidDateRange reports whether (year, month) lies inside the browsable
// window: from three calendar months before now up to December of MaxYear.
// The lower bound slides with the current date; the upper bound is fixed.
func IsValidDateRange(year int, month time.Month, now time.Time) bool {
	min := time.Date(now.Year(), now.Month()-3, 1, 0, 0, 0, 0, time.UTC)
	if year < min.Year() || year > MaxYear {
		return false
	}
	if year == min.Year() && month < min.Month() {
		return false
	}
	return true
}

// Slots enumerates the bookable hour labels for the window
// [startHour, endHour], both ends inclusive, formatted HH:00.
func Slots(startHour, endHour int) []string {
	if startHour > endHour {
		return nil
	}
	slots := make([]string, 0, endHour-startHour+1)
	for h := startHour; h <= endHour; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h))
	}
	return slots
}

// ValidSlot reports whether label is a well-formed hour slot.
func ValidSlot(label string) bool {
	if len(label) != 5 {
		return false
	}
	h, err := strconv.Atoi(label[:2])
	if err != nil {
		return false
	}
	return h >= 0 && h <= 23 && fmt.Sprintf("%02d:00", h) == label
}
