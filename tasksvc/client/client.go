package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskservice"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/tasktransport"
	"github.com/ichigozero/taskmesh/backend/usersvc"
)

func New(apiclient consulsd.Client, logger log.Logger, retryMax int, retryTimeout time.Duration) (taskendpoint.Set, error) {
	var (
		tags        = []string{}
		passingOnly = true
		instancer   = consulsd.NewInstancer(apiclient, logger, "tasksvc", tags, passingOnly)
	)
	return NewWithInstancer(instancer, logger, retryMax, retryTimeout)
}

func NewWithInstancer(instancer sd.Instancer, logger log.Logger, retryMax int, retryTimeout time.Duration) (taskendpoint.Set, error) {
	endpoints := taskendpoint.Set{}
	{
		factory := factoryFor(taskendpoint.MakeTasksEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.TasksEndpoint = retry
	}
	{
		factory := factoryFor(taskendpoint.MakeTaskEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.TaskEndpoint = retry
	}
	{
		factory := factoryFor(taskendpoint.MakeCreateTaskEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.CreateTaskEndpoint = retry
	}
	{
		factory := factoryFor(taskendpoint.MakeUpdateTaskEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.UpdateTaskEndpoint = retry
	}
	{
		factory := factoryFor(taskendpoint.MakeDeleteTaskEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.DeleteTaskEndpoint = retry
	}
	{
		factory := factoryFor(taskendpoint.MakeCountByUserEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.CountByUserEndpoint = retry
	}
	return endpoints, nil
}

func factoryFor(makeEndpoint func(taskservice.Service) endpoint.Endpoint, timeout time.Duration, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		service, err := tasktransport.NewHTTPClient(instance, timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return makeEndpoint(service), nil, nil
	}
}

// NewTaskCounter lets the user service ask how many tasks a user owns.
// A failed count is never reported as zero. Peer failures are returned
// without their status so callers cannot mistake them for their own.
func NewTaskCounter(endpoints taskendpoint.Set, logger log.Logger) usersvc.TaskCounter {
	return taskCounter{endpoints: endpoints, logger: logger}
}

type taskCounter struct {
	endpoints taskendpoint.Set
	logger    log.Logger
}

func (c taskCounter) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	n, err := c.endpoints.CountByUser(ctx, userID)
	if err != nil {
		c.logger.Log("peer", "tasksvc", "method", "CountByUser", "user_id", userID, "err", err)
		return 0, fmt.Errorf("count tasks of user %d: %v", userID, err)
	}
	return n, nil
}
