package model

import "time"

// TaskPatch is a partial update. Nil fields are left alone.
type TaskPatch struct {
	Title        *string            `json:"title,omitempty"`
	Description  *string            `json:"description,omitempty"`
	Location     *Location          `json:"location,omitempty"`
	Completed    *bool              `json:"completed,omitempty"`
	DueDate      *time.Time         `json:"dueDate,omitempty"`
	ClearDueDate bool               `json:"clearDueDate,omitempty"`
	AssignedTo   *[]Assignee        `json:"assignedTo,omitempty"`
	Recurrence   *RecurrencePattern `json:"recurrence,omitempty"`
	Rotation     *RotationPattern   `json:"rotation,omitempty"`
}

// Apply returns a copy of t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.ClearDueDate {
		out.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		out.DueDate = &d
	}
	if p.AssignedTo != nil {
		out.AssignedTo = append([]Assignee(nil), (*p.AssignedTo)...)
	}
	if p.Recurrence != nil {
		r := *p.Recurrence
		out.Recurrence = &r
	}
	if p.Rotation != nil {
		r := p.Rotation.Clone()
		out.Rotation = &r
	}
	return out
}

