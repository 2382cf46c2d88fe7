package taskservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/taskmesh/backend/tasksvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Tasks(ctx context.Context, f tasksvc.Filter) (t []tasksvc.Task, err error) {
	defer func() {
		var userID interface{}
		if f.UserID != nil {
			userID = *f.UserID
		}
		mw.logger.Log(
			"method", "Tasks",
			"status", f.Status,
			"user_id", userID,
			"count", len(t),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, f)
}

func (mw loggingMiddleware) Task(ctx context.Context, taskID uint64) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log("method", "Task", "task_id", taskID, "err", err)
	}()
	return mw.next.Task(ctx, taskID)
}

func (mw loggingMiddleware) CreateTask(ctx context.Context, userID uint64, title, description string, deadline *time.Time) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"user_id", userID,
			"title", title,
			"task_id", t.ID,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, userID, title, description, deadline)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, task tasksvc.Task) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UpdateTask",
			"task_id", task.ID,
			"title", task.Title,
			"status", task.Status,
			"err", err,
		)
	}()
	return mw.next.UpdateTask(ctx, task)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, taskID uint64) (err error) {
	defer func() {
		mw.logger.Log("method", "DeleteTask", "task_id", taskID, "err", err)
	}()
	return mw.next.DeleteTask(ctx, taskID)
}

func (mw loggingMiddleware) CountByUser(ctx context.Context, userID uint64) (n int64, err error) {
	defer func() {
		mw.logger.Log("method", "CountByUser", "user_id", userID, "n", n, "err", err)
	}()
	return mw.next.CountByUser(ctx, userID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time) {
	mw.requestCount.With("method", method).Add(1)
	mw.requestLatency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	defer mw.observe("tasks", time.Now())
	return mw.next.Tasks(ctx, f)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, taskID uint64) (tasksvc.Task, error) {
	defer mw.observe("task", time.Now())
	return mw.next.Task(ctx, taskID)
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, userID uint64, title, description string, deadline *time.Time) (tasksvc.Task, error) {
	defer mw.observe("create_task", time.Now())
	return mw.next.CreateTask(ctx, userID, title, description, deadline)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	defer mw.observe("update_task", time.Now())
	return mw.next.UpdateTask(ctx, task)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, taskID uint64) error {
	defer mw.observe("delete_task", time.Now())
	return mw.next.DeleteTask(ctx, taskID)
}

func (mw instrumentingMiddleware) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	defer mw.observe("count_by_user", time.Now())
	return mw.next.CountByUser(ctx, userID)
}
