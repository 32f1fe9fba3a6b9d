package model

import "time"

type NotificationKind string

const (
	NotificationInstanceCreated NotificationKind = "instance_created"
	NotificationNearby          NotificationKind = "nearby"
)

// Notification is plain data for a sink to present. The core never renders it.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	TaskID        string           `json:"taskId"`
	TeamID        string           `json:"teamId"`
	Title         string           `json:"title"`
	Location      string           `json:"location"`
	AssigneeIDs   []string         `json:"assigneeIds"`
	AssigneeNames []string         `json:"assigneeNames"`
	DueDate       *time.Time       `json:"dueDate,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}
