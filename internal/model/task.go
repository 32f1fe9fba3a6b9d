package model

import (
	"fmt"
	"strings"
	"time"

	"taska/internal/geo"
)

// Location is a named place a task is tied to. Tasks sharing a name share a geofence.
type Location struct {
	Name        string     `json:"name"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
	Radius      float64    `json:"radius,omitempty"` // meters, 0 means "use the monitor default"
}

// Assignee is the copy of a team member stored on a task.
type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is a single item of team work, optionally recurring and rotating.
type Task struct {
	ID           string             `gorm:"primaryKey" json:"id"`
	TeamID       string             `gorm:"index" json:"teamId"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	Location     Location           `gorm:"serializer:json" json:"location"`
	Completed    bool               `gorm:"default:false;index" json:"completed"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"-"`
	DueDate      *time.Time         `json:"dueDate,omitempty"`
	AssignedTo   []Assignee         `gorm:"serializer:json" json:"assignedTo"`
	CreatedBy    string             `json:"createdBy"`
	Recurrence   *RecurrencePattern `gorm:"serializer:json" json:"recurrence,omitempty"`
	ParentTaskID *string            `gorm:"index" json:"parentTaskId,omitempty"`
	Rotation     *RotationPattern   `gorm:"serializer:json" json:"rotation,omitempty"`
}

// IsRecurring reports whether the task carries a recurrence other than none.
func (t Task) IsRecurring() bool {
	return t.Recurrence != nil && t.Recurrence.Type != RecurrenceNone && t.Recurrence.Type != ""
}

// IsInstance reports whether the task was generated from a template.
func (t Task) IsInstance() bool {
	return t.ParentTaskID != nil && *t.ParentTaskID != ""
}

// IsTemplate reports whether the task is the original definition of a recurring series.
func (t Task) IsTemplate() bool {
	return t.IsRecurring() && !t.IsInstance()
}

// SeriesID is the id of the template the task belongs to (its own id for templates).
func (t Task) SeriesID() string {
	if t.IsInstance() {
		return *t.ParentTaskID
	}
	return t.ID
}

// HasCoordinates reports whether the task location can be geofenced.
func (t Task) HasCoordinates() bool {
	return t.Location.Coordinates != nil
}

// AssigneeNames lists assignee names in assignment order.
func (t Task) AssigneeNames() []string {
	names := make([]string, 0, len(t.AssignedTo))
	for _, a := range t.AssignedTo {
		names = append(names, a.Name)
	}
	return names
}

// Clone returns a deep copy so snapshots handed out never alias stored state.
func (t Task) Clone() Task {
	c := t
	if t.Location.Coordinates != nil {
		p := *t.Location.Coordinates
		c.Location.Coordinates = &p
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.ParentTaskID != nil {
		id := *t.ParentTaskID
		c.ParentTaskID = &id
	}
	c.AssignedTo = append([]Assignee(nil), t.AssignedTo...)
	if t.Recurrence != nil {
		r := *t.Recurrence
		r.DaysOfWeek = append([]int(nil), t.Recurrence.DaysOfWeek...)
		c.Recurrence = &r
	}
	if t.Rotation != nil {
		r := t.Rotation.Clone()
		c.Rotation = &r
	}
	return c
}

// Validate checks the fields every stored task must satisfy.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if strings.TrimSpace(t.Location.Name) == "" {
		return fmt.Errorf("%w: location name is required", ErrInvalidTask)
	}
	if t.Location.Radius < 0 {
		return fmt.Errorf("%w: negative radius", ErrInvalidTask)
	}
	if c := t.Location.Coordinates; c != nil && !c.Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidTask)
	}
	seen := make(map[string]struct{}, len(t.AssignedTo))
	for _, a := range t.AssignedTo {
		if _, ok := seen[a.ID]; ok {
			return fmt.Errorf("%w: member %s assigned twice", ErrInvalidTask, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	if t.Recurrence != nil {
		if err := t.Recurrence.Validate(); err != nil {
			return err
		}
	}
	if t.Rotation != nil {
		if err := t.Rotation.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// UniqueAssignees drops repeated member ids, keeping the first occurrence.
func UniqueAssignees(in []Assignee) []Assignee {
	out := make([]Assignee, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, a := range in {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
