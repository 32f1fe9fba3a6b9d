package service

import (
	"fmt"

	"taska/internal/model"
)

type Action string

const (
	ActionAdd        Action = "add"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionComplete   Action = "complete"
	ActionManageTeam Action = "manage_team"
)

// Can reports whether a role may perform an action.
// Admins may do everything, managers edit tasks, members only complete them.
func Can(role model.Role, action Action) bool {
	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleManager:
		return action == ActionAdd || action == ActionUpdate || action == ActionDelete
	case model.RoleMember:
		return action == ActionComplete
	default:
		return false
	}
}

func authorize(actor model.TeamMember, action Action) error {
	if !Can(actor.Role, action) {
		return fmt.Errorf("%w: %s may not %s", model.ErrPermissionDenied, actor.Role, action)
	}
	return nil
}

func authorizeTask(actor model.TeamMember, action Action, task model.Task) error {
	if err := authorize(actor, action); err != nil {
		return err
	}
	if task.TeamID != actor.TeamID {
		return fmt.Errorf("%w: task belongs to another team", model.ErrPermissionDenied)
	}
	return nil
}
