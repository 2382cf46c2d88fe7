package gorm

import (
	"context"
	"errors"

	"github.com/ichigozero/taskmesh/backend/tasksvc"
	stdgorm "gorm.io/gorm"
)

type taskRepository struct {
	db *stdgorm.DB
}

func NewTaskRepository(db *stdgorm.DB) tasksvc.TaskRepository {
	return &taskRepository{db}
}

func (t taskRepository) Create(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	result := t.db.WithContext(ctx).Create(&task)

	return task, result.Error
}

// FindAll returns the newest tasks first.
func (t taskRepository) FindAll(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	tasks := []tasksvc.Task{}

	query := t.db.WithContext(ctx)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	result := query.Order("created_at DESC").Order("id DESC").Find(&tasks)

	return tasks, result.Error
}

func (t taskRepository) Find(ctx context.Context, id uint64) (tasksvc.Task, error) {
	var task tasksvc.Task
	result := t.db.WithContext(ctx).First(&task, id)
	if errors.Is(result.Error, stdgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}

	return task, result.Error
}

// Update overwrites the mutable fields of task. Owner and creation time are
// never written.
func (t taskRepository) Update(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	result := t.db.WithContext(ctx).Model(&tasksvc.Task{ID: task.ID}).Updates(
		map[string]interface{}{
			"title":       task.Title,
			"description": task.Description,
			"status":      task.Status,
			"deadline":    task.Deadline,
		})
	if result.Error != nil {
		return tasksvc.Task{}, result.Error
	}

	return t.Find(ctx, task.ID)
}

func (t taskRepository) Delete(ctx context.Context, id uint64) error {
	result := t.db.WithContext(ctx).Delete(&tasksvc.Task{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}

func (t taskRepository) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	result := t.db.WithContext(ctx).Model(&tasksvc.Task{}).Where("user_id = ?", userID).Count(&n)

	return n, result.Error
}
