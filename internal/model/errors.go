package model

import "errors"

var (
	ErrInvalidPattern      = errors.New("invalid recurrence pattern")
	ErrAssigneeResolution  = errors.New("rotation assignee not on team")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTask         = errors.New("invalid task")
	ErrAlreadyLinked       = errors.New("member already linked to another chat")
)
