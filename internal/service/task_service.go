package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taska/internal/model"
)

// TaskStore is the persistence collaborator for tasks.
type TaskStore interface {
	List(ctx context.Context) ([]model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	Create(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	// Delete removes the task and every instance generated from it, returning the removed ids.
	Delete(ctx context.Context, id string) ([]string, error)
}

// Roster is the persistence collaborator for team members.
type Roster interface {
	List(ctx context.Context) ([]model.TeamMember, error)
	Get(ctx context.Context, id string) (model.TeamMember, error)
	Create(ctx context.Context, member *model.TeamMember) error
	Delete(ctx context.Context, id string) error
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	Location    model.Location
	DueDate     *time.Time
	AssigneeIDs []string
	Recurrence  *model.RecurrencePattern
	Rotation    *model.RotationPattern
}

// TaskService is the single write path for tasks and the roster. User edits and
// generated instances are serialized by one lock, and every task mutation is
// followed by a reconcile pass.
type TaskService struct {
	tasks   TaskStore
	members Roster
	gen     *Generator
	sink    NotificationSink
	log     logrus.FieldLogger
	now     func() time.Time
	newID   func() string

	mu sync.Mutex
}

func NewTaskService(tasks TaskStore, members Roster, sink NotificationSink, log logrus.FieldLogger) *TaskService {
	if sink == nil {
		sink = LogSink{Log: log}
	}
	return &TaskService{
		tasks:   tasks,
		members: members,
		gen:     NewGenerator(log),
		sink:    sink,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// List returns a snapshot of every task.
func (s *TaskService) List(ctx context.Context) ([]model.Task, error) {
	return s.tasks.List(ctx)
}

func (s *TaskService) GetTask(ctx context.Context, id string) (model.Task, error) {
	return s.tasks.Get(ctx, id)
}

// Member loads a roster entry, typically the acting user.
func (s *TaskService) Member(ctx context.Context, id string) (model.TeamMember, error) {
	return s.members.Get(ctx, id)
}

func (s *TaskService) Members(ctx context.Context) ([]model.TeamMember, error) {
	return s.members.List(ctx)
}

func (s *TaskService) CreateTask(ctx context.Context, actor model.TeamMember, input TaskInput) (model.Task, error) {
	if err := authorize(actor, ActionAdd); err != nil {
		return model.Task{}, err
	}

	var created model.Task
	err := s.mutate(ctx, func(members []model.TeamMember) error {
		assignees, err := resolveAssignees(input.AssigneeIDs, members)
		if err != nil {
			return err
		}
		if input.Rotation != nil && input.Rotation.Enabled && len(assignees) == 0 {
			if m, ok := ResolveAssignee(*input.Rotation, members); ok {
				assignees = []model.Assignee{m.Ref()}
			}
		}

		task := model.Task{
			ID:          s.newID(),
			TeamID:      actor.TeamID,
			Title:       strings.TrimSpace(input.Title),
			Description: strings.TrimSpace(input.Description),
			Location:    input.Location,
			CreatedAt:   s.now(),
			DueDate:     input.DueDate,
			AssignedTo:  assignees,
			CreatedBy:   actor.ID,
			Recurrence:  input.Recurrence,
			Rotation:    input.Rotation,
		}
		if err := task.Validate(); err != nil {
			return err
		}
		if err := s.tasks.Create(ctx, &task); err != nil {
			return err
		}
		created = task
		s.log.WithFields(logrus.Fields{"task_id": task.ID, "actor": actor.ID, "recurring": task.IsRecurring()}).Info("task created")
		return nil
	})
	return created, err
}

// UpdateTask applies a partial update after an update permission check.
func (s *TaskService) UpdateTask(ctx context.Context, actor model.TeamMember, id string, patch model.TaskPatch) (model.Task, error) {
	return s.patch(ctx, actor, ActionUpdate, id, patch)
}

// CompleteTask marks a task done. Completing a recurring occurrence spawns the next one.
func (s *TaskService) CompleteTask(ctx context.Context, actor model.TeamMember, id string) (model.Task, error) {
	return s.SetCompleted(ctx, actor, id, true)
}

// SetCompleted toggles completion.
func (s *TaskService) SetCompleted(ctx context.Context, actor model.TeamMember, id string, done bool) (model.Task, error) {
	return s.patch(ctx, actor, ActionComplete, id, model.TaskPatch{Completed: &done})
}

func (s *TaskService) patch(ctx context.Context, actor model.TeamMember, action Action, id string, patch model.TaskPatch) (model.Task, error) {
	var updated model.Task
	err := s.mutate(ctx, func([]model.TeamMember) error {
		current, err := s.tasks.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeTask(actor, action, current); err != nil {
			return err
		}
		if action != ActionComplete && patch.Completed != nil && *patch.Completed != current.Completed {
			if err := authorizeTask(actor, ActionComplete, current); err != nil {
				return err
			}
		}
		if patch.AssignedTo != nil {
			unique := model.UniqueAssignees(*patch.AssignedTo)
			patch.AssignedTo = &unique
		}
		if err := patch.Apply(current).Validate(); err != nil {
			return err
		}
		updated, err = s.tasks.Update(ctx, id, patch)
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"task_id": id, "actor": actor.ID, "action": action}).Info("task updated")
		return nil
	})
	return updated, err
}

// DeleteTask removes a task; deleting a template removes its instances too.
func (s *TaskService) DeleteTask(ctx context.Context, actor model.TeamMember, id string) ([]string, error) {
	var removed []string
	err := s.mutate(ctx, func([]model.TeamMember) error {
		current, err := s.tasks.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeTask(actor, ActionDelete, current); err != nil {
			return err
		}
		removed, err = s.tasks.Delete(ctx, id)
		if err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{"task_id": id, "actor": actor.ID, "removed": len(removed)}).Info("task deleted")
		return nil
	})
	return removed, err
}

// AddMember puts a new member on the actor's team. Admin only.
func (s *TaskService) AddMember(ctx context.Context, actor model.TeamMember, member model.TeamMember) (model.TeamMember, error) {
	if err := authorize(actor, ActionManageTeam); err != nil {
		return model.TeamMember{}, err
	}
	if strings.TrimSpace(member.Name) == "" {
		return model.TeamMember{}, fmt.Errorf("%w: member name is required", model.ErrInvalidTask)
	}
	if member.Role == "" {
		member.Role = model.RoleMember
	}
	if !member.Role.Valid() {
		return model.TeamMember{}, fmt.Errorf("%w: unknown role %q", model.ErrInvalidTask, member.Role)
	}
	if member.ID == "" {
		member.ID = s.newID()
	}
	member.TeamID = actor.TeamID

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.members.Create(ctx, &member); err != nil {
		return model.TeamMember{}, err
	}
	s.log.WithFields(logrus.Fields{"member_id": member.ID, "actor": actor.ID}).Info("member added")
	return member, nil
}

// RemoveMember takes a member off the roster. Admin only, and never the actor themself.
// Rotations keep the removed id; resolution falls back to the previous assignees.
func (s *TaskService) RemoveMember(ctx context.Context, actor model.TeamMember, id string) error {
	if err := authorize(actor, ActionManageTeam); err != nil {
		return err
	}
	if id == actor.ID {
		return fmt.Errorf("%w: cannot remove yourself from the team", model.ErrPermissionDenied)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	member, err := s.members.Get(ctx, id)
	if err != nil {
		return err
	}
	if member.TeamID != actor.TeamID {
		return fmt.Errorf("%w: member belongs to another team", model.ErrPermissionDenied)
	}
	if err := s.members.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"member_id": id, "actor": actor.ID}).Info("member removed")
	return nil
}

// Reconcile runs one generator pass and stores what it produced.
func (s *TaskService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	s.mu.Lock()
	res, err := s.reconcileLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return res, err
	}
	s.dispatch(ctx, res.Notifications)
	return res, nil
}

// mutate runs fn under the write lock, then reconciles and delivers notifications.
func (s *TaskService) mutate(ctx context.Context, fn func(members []model.TeamMember) error) error {
	s.mu.Lock()
	members, err := s.members.List(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("list members: %w", err)
	}
	if err := fn(members); err != nil {
		s.mu.Unlock()
		return err
	}
	res, err := s.reconcileLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		// The mutation itself is stored; the next scheduled pass retries generation.
		s.log.WithError(err).Error("reconcile after mutation")
		return nil
	}
	s.dispatch(ctx, res.Notifications)
	return nil
}

func (s *TaskService) reconcileLocked(ctx context.Context) (ReconcileResult, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list tasks: %w", err)
	}
	members, err := s.members.List(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list members: %w", err)
	}

	res := s.gen.Reconcile(tasks, members, s.now())

	stored := res.NewTasks[:0]
	notes := res.Notifications[:0]
	for i := range res.NewTasks {
		task := res.NewTasks[i]
		if err := s.tasks.Create(ctx, &task); err != nil {
			s.log.WithError(err).WithField("parent_task_id", *task.ParentTaskID).Error("store generated task")
			res.Errors = append(res.Errors, fmt.Errorf("store instance of %s: %w", *task.ParentTaskID, err))
			continue
		}
		s.log.WithFields(logrus.Fields{"task_id": task.ID, "parent_task_id": *task.ParentTaskID, "due": task.DueDate}).Info("recurring instance created")
		stored = append(stored, task)
		notes = append(notes, res.Notifications[i])
	}
	res.NewTasks = stored
	res.Notifications = notes
	return res, nil
}

func (s *TaskService) dispatch(ctx context.Context, notes []model.Notification) {
	for _, n := range notes {
		if err := s.sink.Notify(ctx, n); err != nil {
			s.log.WithError(err).WithField("task_id", n.TaskID).Warn("deliver notification")
		}
	}
}

func resolveAssignees(ids []string, members []model.TeamMember) ([]model.Assignee, error) {
	byID := make(map[string]model.TeamMember, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	out := make([]model.Assignee, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown member %s", model.ErrInvalidTask, id)
		}
		out = append(out, m.Ref())
	}
	return model.UniqueAssignees(out), nil
}
