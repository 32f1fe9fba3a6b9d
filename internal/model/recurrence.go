package model

import "fmt"

type RecurrenceType string

const (
	RecurrenceNone    RecurrenceType = "none"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
	RecurrenceYearly  RecurrenceType = "yearly"
)

// RecurrencePattern describes how often a task repeats.
type RecurrencePattern struct {
	Type     RecurrenceType `json:"type"`
	Interval int            `json:"interval"`
	// DaysOfWeek is shown to users only; weekly math always steps 7*Interval days.
	DaysOfWeek []int `json:"daysOfWeek,omitempty"`
	DayOfMonth int   `json:"dayOfMonth,omitempty"`
	Month      int   `json:"month,omitempty"` // 0-based
	Day        int   `json:"day,omitempty"`
}

// Validate reports ErrInvalidPattern for patterns no date math is defined for.
func (p RecurrencePattern) Validate() error {
	switch p.Type {
	case RecurrenceNone:
		return nil
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
	default:
		return fmt.Errorf("%w: unknown recurrence type %q", ErrInvalidPattern, p.Type)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidPattern, p.Interval)
	}
	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidPattern, d)
		}
	}
	if p.DayOfMonth < 0 || p.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month %d out of range", ErrInvalidPattern, p.DayOfMonth)
	}
	if p.Month < 0 || p.Month > 11 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPattern, p.Month)
	}
	if p.Day < 0 || p.Day > 31 {
		return fmt.Errorf("%w: day %d out of range", ErrInvalidPattern, p.Day)
	}
	return nil
}

// RotationPattern hands a recurring task to members in turn.
type RotationPattern struct {
	Enabled      bool     `json:"enabled"`
	MemberIDs    []string `json:"memberIds"`
	CurrentIndex int      `json:"currentIndex"`
}

func (r RotationPattern) Clone() RotationPattern {
	r.MemberIDs = append([]string(nil), r.MemberIDs...)
	return r
}

// Validate rejects duplicate members and a pointer outside the member list.
func (r RotationPattern) Validate() error {
	seen := make(map[string]struct{}, len(r.MemberIDs))
	for _, id := range r.MemberIDs {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: rotation lists member %s twice", ErrInvalidTask, id)
		}
		seen[id] = struct{}{}
	}
	if len(r.MemberIDs) > 0 && (r.CurrentIndex < 0 || r.CurrentIndex >= len(r.MemberIDs)) {
		return fmt.Errorf("%w: rotation index %d out of range", ErrInvalidTask, r.CurrentIndex)
	}
	return nil
}
