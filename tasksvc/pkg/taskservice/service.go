package taskservice

import (
	"context"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskmesh/backend/tasksvc"
)

type Service interface {
	Tasks(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error)
	Task(ctx context.Context, taskID uint64) (tasksvc.Task, error)
	CreateTask(ctx context.Context, userID uint64, title, description string, deadline *time.Time) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, taskID uint64) error
	CountByUser(ctx context.Context, userID uint64) (int64, error)
}

func New(t tasksvc.TaskRepository, u tasksvc.UserLookup, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t, u)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
	users tasksvc.UserLookup
}

func NewBasicService(t tasksvc.TaskRepository, u tasksvc.UserLookup) Service {
	return basicService{tasks: t, users: u}
}

func (s basicService) Tasks(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, tasksvc.ErrInvalidArgument
	}
	return s.tasks.FindAll(ctx, f)
}

func (s basicService) Task(ctx context.Context, taskID uint64) (tasksvc.Task, error) {
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return s.tasks.Find(ctx, taskID)
}

func (s basicService) CreateTask(ctx context.Context, userID uint64, title, description string, deadline *time.Time) (tasksvc.Task, error) {
	if userID == 0 || strings.TrimSpace(title) == "" {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}

	if err := s.checkUser(ctx, userID); err != nil {
		return tasksvc.Task{}, err
	}

	return s.tasks.Create(ctx, tasksvc.Task{
		Title:       title,
		Description: description,
		Status:      tasksvc.StatusPending,
		Deadline:    deadline,
		UserID:      userID,
	})
}

// UpdateTask overwrites title, description, status and deadline. An empty
// status keeps the stored one.
func (s basicService) UpdateTask(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	if strings.TrimSpace(task.Title) == "" || (task.Status != "" && !task.Status.Valid()) {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}

	current, err := s.Task(ctx, task.ID)
	if err != nil {
		return tasksvc.Task{}, err
	}

	if !tasksvc.CanMutate(current.Status) {
		return tasksvc.Task{}, tasksvc.ErrTaskCompleted
	}

	if err := s.checkUser(ctx, current.UserID); err != nil {
		return tasksvc.Task{}, err
	}

	current.Title = task.Title
	current.Description = task.Description
	current.Deadline = task.Deadline
	if task.Status != "" {
		current.Status = task.Status
	}

	return s.tasks.Update(ctx, current)
}

func (s basicService) DeleteTask(ctx context.Context, taskID uint64) error {
	if taskID == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return s.tasks.Delete(ctx, taskID)
}

func (s basicService) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	return s.tasks.CountByUser(ctx, userID)
}

// checkUser confirms the owner with the user service. A missing user and a
// failed lookup are reported the same way.
func (s basicService) checkUser(ctx context.Context, userID uint64) error {
	if err := s.users.UserExists(ctx, userID); err != nil {
		return tasksvc.ErrUserNotFound
	}
	return nil
}
