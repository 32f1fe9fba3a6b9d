package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taska/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// List returns every task, oldest first.
func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) ListByTeam(ctx context.Context, teamID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("team_id = ?", teamID).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list team tasks: %w", err)
	}
	return tasks, nil
}

// ListInstances returns the tasks generated from a template.
func (r *TaskRepository) ListInstances(ctx context.Context, templateID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("parent_task_id = ?", templateID).
		Order("due_date ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Task{}, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return model.Task{}, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

// Update applies a partial update and returns the stored result.
func (r *TaskRepository) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	var updated model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.Task
		if err := tx.Where("id = ?", id).First(&task).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
			}
			return fmt.Errorf("find task: %w", err)
		}
		updated = patch.Apply(task)
		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return updated, nil
}

// Delete removes a task together with every instance generated from it.
func (r *TaskRepository) Delete(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).Where("id = ? OR parent_task_id = ?", id, id).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("find tasks to delete: %w", err)
		}
		if len(ids) == 0 {
			return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		if err := tx.Where("id IN ?", ids).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
