package tasksvc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ichigozero/taskmesh/backend/internal/jsontime"
)

type Task struct {
	ID          uint64 `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string
	Status      Status `gorm:"not null;index"`
	Deadline    *time.Time
	UserID      uint64    `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type taskJSON struct {
	ID          uint64         `json:"id"`
	UserID      uint64         `json:"userId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      Status         `json:"status"`
	CreatedAt   jsontime.Time  `json:"createdAt"`
	Deadline    *jsontime.Time `json:"deadline"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   jsontime.New(t.CreatedAt),
		Deadline:    jsontime.Ptr(t.Deadline),
	})
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var v taskJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = Task{
		ID:          v.ID,
		UserID:      v.UserID,
		Title:       v.Title,
		Description: v.Description,
		Status:      v.Status,
		CreatedAt:   v.CreatedAt.Time,
		Deadline:    v.Deadline.Std(),
	}
	return nil
}

// Filter narrows a task listing. Unset fields match every task.
type Filter struct {
	Status Status
	UserID *uint64
}

type TaskRepository interface {
	Create(ctx context.Context, task Task) (Task, error)
	FindAll(ctx context.Context, f Filter) ([]Task, error)
	Find(ctx context.Context, id uint64) (Task, error)
	Update(ctx context.Context, task Task) (Task, error)
	Delete(ctx context.Context, id uint64) error
	CountByUser(ctx context.Context, userID uint64) (int64, error)
}

// UserLookup confirms that a user exists in the user service. Any error
// means the user could not be confirmed.
type UserLookup interface {
	UserExists(ctx context.Context, userID uint64) error
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskCompleted   = errors.New("cannot edit a completed task")
	ErrUserNotFound    = errors.New("user not found")
)
