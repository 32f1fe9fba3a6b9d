package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"taska/internal/geo"
	"taska/internal/model"
)

// DefaultSearchRadius applies to ad-hoc nearby searches for tasks without a radius.
const DefaultSearchRadius = 1000.0

type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter accepts all, active or completed; empty means all.
func ParseFilter(raw string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("unknown filter %q", raw)
	}
}

func FilterTasks(tasks []model.Task, f Filter) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		switch {
		case f == FilterActive && t.Completed:
			continue
		case f == FilterCompleted && !t.Completed:
			continue
		}
		out = append(out, t)
	}
	return out
}

// LocationGroup is the set of tasks sharing a location name.
type LocationGroup struct {
	Name  string
	Tasks []model.Task
}

// GroupByLocation groups tasks by location name in order of first appearance.
func GroupByLocation(tasks []model.Task) []LocationGroup {
	index := make(map[string]int)
	var groups []LocationGroup
	for _, t := range tasks {
		i, ok := index[t.Location.Name]
		if !ok {
			i = len(groups)
			index[t.Location.Name] = i
			groups = append(groups, LocationGroup{Name: t.Location.Name})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	return groups
}

// FindNearby returns active tasks whose geofence contains user. Tasks without
// a radius use defaultRadius, or DefaultSearchRadius when that is <= 0.
func FindNearby(tasks []model.Task, user geo.Point, defaultRadius float64) []model.Task {
	if defaultRadius <= 0 {
		defaultRadius = DefaultSearchRadius
	}
	var out []model.Task
	for _, t := range tasks {
		if t.Completed || !t.HasCoordinates() {
			continue
		}
		radius := t.Location.Radius
		if radius <= 0 {
			radius = defaultRadius
		}
		if geo.WithinRadius(user, *t.Location.Coordinates, radius) {
			out = append(out, t)
		}
	}
	return out
}

// SetCoordinates pins a location to a point. radius <= 0 selects DefaultGeofenceRadius.
func SetCoordinates(loc model.Location, p geo.Point, radius float64) model.Location {
	if radius <= 0 {
		radius = DefaultGeofenceRadius
	}
	loc.Coordinates = &p
	loc.Radius = radius
	return loc
}

// SortByDue orders tasks by due date, undated last, newest first among equals.
func SortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.CreatedAt.After(b.CreatedAt)
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		default:
			return a.DueDate.Before(*b.DueDate)
		}
	})
}

// CalendarDay counts tasks due on one day.
type CalendarDay struct {
	Date      time.Time
	Active    int
	Completed int
}

// CalendarMonth returns the days of the month containing any due task, in date order.
func CalendarMonth(tasks []model.Task, year int, month time.Month, loc *time.Location) []CalendarDay {
	last := daysInMonth(month, year)
	days := make([]CalendarDay, last)
	for i := range days {
		days[i].Date = time.Date(year, month, i+1, 0, 0, 0, 0, loc)
	}
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		y, m, d := t.DueDate.In(loc).Date()
		if y != year || m != month {
			continue
		}
		if t.Completed {
			days[d-1].Completed++
		} else {
			days[d-1].Active++
		}
	}
	out := days[:0]
	for _, day := range days {
		if day.Active+day.Completed > 0 {
			out = append(out, day)
		}
	}
	return out
}

// TasksDueOn returns tasks due on the calendar day of day in its location.
func TasksDueOn(tasks []model.Task, day time.Time) []model.Task {
	y, m, d := day.Date()
	var out []model.Task
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		ty, tm, td := t.DueDate.In(day.Location()).Date()
		if ty == y && tm == m && td == d {
			out = append(out, t)
		}
	}
	return out
}
