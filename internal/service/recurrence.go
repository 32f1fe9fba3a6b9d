package service

import (
	"fmt"
	"time"

	"taska/internal/model"
)

// NextOccurrence returns the due date that follows from for the given pattern.
// It returns ok=false for RecurrenceNone. Invalid patterns fail with model.ErrInvalidPattern.
func NextOccurrence(p model.RecurrencePattern, from time.Time) (next time.Time, ok bool, err error) {
	if err := p.Validate(); err != nil {
		return time.Time{}, false, err
	}

	switch p.Type {
	case model.RecurrenceNone:
		return time.Time{}, false, nil
	case model.RecurrenceDaily:
		return from.AddDate(0, 0, p.Interval), true, nil
	case model.RecurrenceWeekly:
		// Fixed 7-day steps; DaysOfWeek does not move the date.
		return from.AddDate(0, 0, 7*p.Interval), true, nil
	case model.RecurrenceMonthly:
		day := from.Day()
		if p.DayOfMonth > 0 {
			day = p.DayOfMonth
		}
		return addMonthsClamped(from, p.Interval, day), true, nil
	case model.RecurrenceYearly:
		day := from.Day()
		if p.Day > 0 && time.Month(p.Month+1) == from.Month() {
			day = p.Day
		}
		return addMonthsClamped(from, 12*p.Interval, day), true, nil
	default:
		return time.Time{}, false, fmt.Errorf("%w: unknown recurrence type %q", model.ErrInvalidPattern, p.Type)
	}
}

// addMonthsClamped moves from by months calendar months, landing on day or the
// last day of the target month when it is shorter. Clock time and zone are kept.
func addMonthsClamped(from time.Time, months, day int) time.Time {
	year, month, _ := from.Date()
	firstOfTarget := time.Date(year, month, 1, 0, 0, 0, 0, from.Location()).AddDate(0, months, 0)
	ty, tm, _ := firstOfTarget.Date()

	if last := daysInMonth(tm, ty); day > last {
		day = last
	}
	hour, minute, sec := from.Clock()
	return time.Date(ty, tm, day, hour, minute, sec, from.Nanosecond(), from.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	firstOfNextMonth := firstOfMonth.AddDate(0, 1, 0)
	lastOfMonth := firstOfNextMonth.AddDate(0, 0, -1)
	return lastOfMonth.Day()
}
