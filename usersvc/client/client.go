package client

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/ichigozero/taskmesh/backend/tasksvc"
	"github.com/ichigozero/taskmesh/backend/usersvc"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userendpoint"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userservice"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/usertransport"
)

// New returns user endpoints balanced over the passing usersvc instances
// registered in Consul.
func New(apiclient consulsd.Client, logger log.Logger, retryMax int, retryTimeout time.Duration) (userendpoint.Set, error) {
	var (
		tags        = []string{}
		passingOnly = true
		instancer   = consulsd.NewInstancer(apiclient, logger, "usersvc", tags, passingOnly)
	)
	return NewWithInstancer(instancer, logger, retryMax, retryTimeout)
}

// NewWithInstancer is like New over any instancer, such as an
// sd.FixedInstancer of known addresses.
func NewWithInstancer(instancer sd.Instancer, logger log.Logger, retryMax int, retryTimeout time.Duration) (userendpoint.Set, error) {
	endpoints := userendpoint.Set{}
	{
		factory := factoryFor(userendpoint.MakeUsersEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.UsersEndpoint = retry
	}
	{
		factory := factoryFor(userendpoint.MakeUserEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.UserEndpoint = retry
	}
	{
		factory := factoryFor(userendpoint.MakeCreateUserEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.CreateUserEndpoint = retry
	}
	{
		factory := factoryFor(userendpoint.MakeUpdateUserEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.UpdateUserEndpoint = retry
	}
	{
		factory := factoryFor(userendpoint.MakeDeleteUserEndpoint, retryTimeout, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		retry := lb.Retry(retryMax, retryTimeout, balancer)
		endpoints.DeleteUserEndpoint = retry
	}
	return endpoints, nil
}

func factoryFor(makeEndpoint func(userservice.Service) endpoint.Endpoint, timeout time.Duration, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		service, err := usertransport.NewHTTPClient(instance, timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return makeEndpoint(service), nil, nil
	}
}

// NewUserLookup lets the task service confirm task owners through the
// user endpoints.
func NewUserLookup(endpoints userendpoint.Set, logger log.Logger) tasksvc.UserLookup {
	return userLookup{endpoints: endpoints, logger: logger}
}

type userLookup struct {
	endpoints userendpoint.Set
	logger    log.Logger
}

func (l userLookup) UserExists(ctx context.Context, userID uint64) error {
	_, err := l.endpoints.User(ctx, userID)
	if err != nil && !errors.Is(err, usersvc.ErrUserNotFound) {
		l.logger.Log("peer", "usersvc", "method", "User", "user_id", userID, "err", err)
	}
	return err
}
