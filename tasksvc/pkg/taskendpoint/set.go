package taskendpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/ichigozero/taskmesh/backend/internal/jsontime"
	"github.com/ichigozero/taskmesh/backend/tasksvc"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskservice"
)

type Set struct {
	TasksEndpoint       endpoint.Endpoint
	TaskEndpoint        endpoint.Endpoint
	CreateTaskEndpoint  endpoint.Endpoint
	UpdateTaskEndpoint  endpoint.Endpoint
	DeleteTaskEndpoint  endpoint.Endpoint
	CountByUserEndpoint endpoint.Endpoint
}

func New(svc taskservice.Service, logger log.Logger) Set {
	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = MakeTasksEndpoint(svc)
		tasksEndpoint = LoggingMiddleware(log.With(logger, "method", "Tasks"))(tasksEndpoint)
	}
	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = MakeTaskEndpoint(svc)
		taskEndpoint = LoggingMiddleware(log.With(logger, "method", "Task"))(taskEndpoint)
	}
	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = MakeCreateTaskEndpoint(svc)
		createTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "CreateTask"))(createTaskEndpoint)
	}
	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = MakeUpdateTaskEndpoint(svc)
		updateTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "UpdateTask"))(updateTaskEndpoint)
	}
	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = MakeDeleteTaskEndpoint(svc)
		deleteTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "DeleteTask"))(deleteTaskEndpoint)
	}
	var countByUserEndpoint endpoint.Endpoint
	{
		countByUserEndpoint = MakeCountByUserEndpoint(svc)
		countByUserEndpoint = LoggingMiddleware(log.With(logger, "method", "CountByUser"))(countByUserEndpoint)
	}

	return Set{
		TasksEndpoint:       tasksEndpoint,
		TaskEndpoint:        taskEndpoint,
		CreateTaskEndpoint:  createTaskEndpoint,
		UpdateTaskEndpoint:  updateTaskEndpoint,
		DeleteTaskEndpoint:  deleteTaskEndpoint,
		CountByUserEndpoint: countByUserEndpoint,
	}
}

func (s Set) Tasks(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	resp, err := s.TasksEndpoint(ctx, TasksRequest{Status: string(f.Status), UserID: f.UserID})
	if err != nil {
		return nil, err
	}
	response := resp.(TasksResponse)
	return response.Tasks, response.Err
}

func (s Set) Task(ctx context.Context, taskID uint64) (tasksvc.Task, error) {
	resp, err := s.TaskEndpoint(ctx, TaskRequest{TaskID: taskID})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(TaskResponse)
	return response.Task, response.Err
}

func (s Set) CreateTask(ctx context.Context, userID uint64, title, description string, deadline *time.Time) (tasksvc.Task, error) {
	resp, err := s.CreateTaskEndpoint(ctx, CreateTaskRequest{
		UserID:      userID,
		Title:       title,
		Description: description,
		Deadline:    jsontime.Ptr(deadline),
	})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(CreateTaskResponse)
	return response.Task, response.Err
}

func (s Set) UpdateTask(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	resp, err := s.UpdateTaskEndpoint(ctx, UpdateTaskRequest{
		TaskID:      task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Deadline:    jsontime.Ptr(task.Deadline),
	})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(UpdateTaskResponse)
	return response.Task, response.Err
}

func (s Set) DeleteTask(ctx context.Context, taskID uint64) error {
	resp, err := s.DeleteTaskEndpoint(ctx, DeleteTaskRequest{TaskID: taskID})
	if err != nil {
		return err
	}
	response := resp.(DeleteTaskResponse)
	return response.Err
}

func (s Set) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	resp, err := s.CountByUserEndpoint(ctx, CountByUserRequest{UserID: userID})
	if err != nil {
		return 0, err
	}
	response := resp.(CountByUserResponse)
	return response.Count, response.Err
}

func MakeTasksEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(TasksRequest)
		t, err := s.Tasks(ctx, tasksvc.Filter{Status: tasksvc.Status(req.Status), UserID: req.UserID})
		return TasksResponse{Tasks: t, Err: err}, nil
	}
}

func MakeTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(TaskRequest)
		t, err := s.Task(ctx, req.TaskID)
		return TaskResponse{Task: t, Err: err}, nil
	}
}

func MakeCreateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(CreateTaskRequest)
		t, err := s.CreateTask(ctx, req.UserID, req.Title, req.Description, req.Deadline.Std())
		return CreateTaskResponse{Task: t, Err: err}, nil
	}
}

func MakeUpdateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(UpdateTaskRequest)
		t, err := s.UpdateTask(
			ctx,
			tasksvc.Task{
				ID:          req.TaskID,
				Title:       req.Title,
				Description: req.Description,
				Status:      tasksvc.Status(req.Status),
				Deadline:    req.Deadline.Std(),
			},
		)
		return UpdateTaskResponse{Task: t, Err: err}, nil
	}
}

func MakeDeleteTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(DeleteTaskRequest)
		err = s.DeleteTask(ctx, req.TaskID)
		return DeleteTaskResponse{Err: err}, nil
	}
}

func MakeCountByUserEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(CountByUserRequest)
		n, err := s.CountByUser(ctx, req.UserID)
		return CountByUserResponse{Count: n, Err: err}, nil
	}
}

var (
	_ endpoint.Failer = TasksResponse{}
	_ endpoint.Failer = TaskResponse{}
	_ endpoint.Failer = CreateTaskResponse{}
	_ endpoint.Failer = UpdateTaskResponse{}
	_ endpoint.Failer = DeleteTaskResponse{}
	_ endpoint.Failer = CountByUserResponse{}

	_ httptransport.StatusCoder = CreateTaskResponse{}
	_ httptransport.StatusCoder = DeleteTaskResponse{}
)

type TasksRequest struct {
	Status string  `json:"status" validate:"omitempty,oneof=Pending InProgress Completed"`
	UserID *uint64 `json:"userId"`
}

type TasksResponse struct {
	Tasks []tasksvc.Task
	Err   error
}

func (r TasksResponse) Failed() error { return r.Err }

func (r TasksResponse) MarshalJSON() ([]byte, error) {
	if r.Tasks == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Tasks)
}

type TaskRequest struct {
	TaskID uint64
}

type TaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r TaskResponse) Failed() error { return r.Err }

func (r TaskResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.Task) }

type CreateTaskRequest struct {
	UserID      uint64         `json:"userId" validate:"required"`
	Title       string         `json:"title" validate:"required,max=255"`
	Description string         `json:"description"`
	Deadline    *jsontime.Time `json:"deadline"`
}

type CreateTaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r CreateTaskResponse) Failed() error { return r.Err }

func (r CreateTaskResponse) StatusCode() int { return http.StatusCreated }

func (r CreateTaskResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.Task) }

type UpdateTaskRequest struct {
	TaskID      uint64         `json:"-"`
	Title       string         `json:"title" validate:"required,max=255"`
	Description string         `json:"description"`
	Status      string         `json:"status" validate:"omitempty,oneof=Pending InProgress Completed"`
	Deadline    *jsontime.Time `json:"deadline"`
}

type UpdateTaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r UpdateTaskResponse) Failed() error { return r.Err }

func (r UpdateTaskResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.Task) }

type DeleteTaskRequest struct {
	TaskID uint64
}

type DeleteTaskResponse struct {
	Err error
}

func (r DeleteTaskResponse) Failed() error { return r.Err }

func (r DeleteTaskResponse) StatusCode() int { return http.StatusNoContent }

type CountByUserRequest struct {
	UserID uint64
}

type CountByUserResponse struct {
	Count int64
	Err   error
}

func (r CountByUserResponse) Failed() error { return r.Err }

func (r CountByUserResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.Count) }
