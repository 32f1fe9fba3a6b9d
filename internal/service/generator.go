package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taska/internal/model"
)

// ReconcileResult is what one generator pass decided to create.
type ReconcileResult struct {
	NewTasks      []model.Task
	Notifications []model.Notification
	// Errors holds per-template failures; each failed template was skipped.
	Errors []error
}

// Generator materializes the next occurrence of completed recurring tasks.
// It is pure: it reads a snapshot and returns what should be written.
type Generator struct {
	log   logrus.FieldLogger
	newID func() string
}

func NewGenerator(log logrus.FieldLogger) *Generator {
	return &Generator{log: log, newID: uuid.NewString}
}

// Reconcile inspects every completed recurring task and returns the instances
// that are missing. Running it again on the returned state yields nothing new.
//
// A series is a template plus every instance pointing at it. Only the latest
// occurrence of a series (by due date) spawns the next one, and never while the
// series still has an open instance due after now.
func (g *Generator) Reconcile(tasks []model.Task, members []model.TeamMember, now time.Time) ReconcileResult {
	var res ReconcileResult

	pending := make(map[string]bool)
	latest := make(map[string]model.Task)
	for _, t := range tasks {
		series := t.SeriesID()
		if t.IsInstance() && !t.Completed && t.DueDate != nil && t.DueDate.After(now) {
			pending[series] = true
		}
		if cur, ok := latest[series]; !ok || laterOccurrence(t, cur) {
			latest[series] = t
		}
	}

	for _, t := range tasks {
		if !t.Completed || !t.IsRecurring() {
			continue
		}
		series := t.SeriesID()
		if pending[series] {
			continue
		}
		if latest[series].ID != t.ID {
			continue
		}

		task, ok, err := g.nextInstance(t, members, now)
		if err != nil {
			g.log.WithError(err).WithField("task_id", t.ID).Error("skip recurring task")
			res.Errors = append(res.Errors, fmt.Errorf("task %s: %w", t.ID, err))
			continue
		}
		if !ok {
			continue
		}

		// Guard against two completed occurrences of one series in the same pass.
		pending[series] = true
		res.NewTasks = append(res.NewTasks, task)
		res.Notifications = append(res.Notifications, instanceNotification(task, now))
	}
	return res
}

func (g *Generator) nextInstance(t model.Task, members []model.TeamMember, now time.Time) (model.Task, bool, error) {
	if t.DueDate == nil {
		return model.Task{}, false, nil
	}
	next, ok, err := NextOccurrence(*t.Recurrence, *t.DueDate)
	if err != nil || !ok {
		return model.Task{}, false, err
	}

	inst := t.Clone()
	inst.ID = g.newID()
	inst.Completed = false
	inst.CreatedAt = now
	inst.UpdatedAt = now
	inst.DueDate = &next
	series := t.SeriesID()
	inst.ParentTaskID = &series

	if t.Rotation != nil && t.Rotation.Enabled && len(t.Rotation.MemberIDs) > 0 {
		rot := AdvanceRotation(*t.Rotation)
		inst.Rotation = &rot
		if m, ok := ResolveAssignee(rot, members); ok {
			inst.AssignedTo = []model.Assignee{m.Ref()}
		} else {
			g.log.WithError(errAssignee(rot)).WithField("task_id", t.ID).Warn("keeping previous assignees")
		}
	}
	return inst, true, nil
}

// laterOccurrence orders occurrences of one series. Undated tasks sort first.
func laterOccurrence(a, b model.Task) bool {
	switch {
	case a.DueDate == nil && b.DueDate == nil:
	case a.DueDate == nil:
		return false
	case b.DueDate == nil:
		return true
	case !a.DueDate.Equal(*b.DueDate):
		return a.DueDate.After(*b.DueDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func errAssignee(rot model.RotationPattern) error {
	id := ""
	if rot.CurrentIndex >= 0 && rot.CurrentIndex < len(rot.MemberIDs) {
		id = rot.MemberIDs[rot.CurrentIndex]
	}
	return fmt.Errorf("%w: %s", model.ErrAssigneeResolution, id)
}

func instanceNotification(t model.Task, now time.Time) model.Notification {
	ids := make([]string, 0, len(t.AssignedTo))
	for _, a := range t.AssignedTo {
		ids = append(ids, a.ID)
	}
	return model.Notification{
		Kind:          model.NotificationInstanceCreated,
		TaskID:        t.ID,
		TeamID:        t.TeamID,
		Title:         t.Title,
		Location:      t.Location.Name,
		AssigneeIDs:   ids,
		AssigneeNames: t.AssigneeNames(),
		DueDate:       t.DueDate,
		CreatedAt:     now,
	}
}
