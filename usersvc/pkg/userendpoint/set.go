package userendpoint

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/ichigozero/taskmesh/backend/usersvc"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userservice"
)

type Set struct {
	UsersEndpoint      endpoint.Endpoint
	UserEndpoint       endpoint.Endpoint
	CreateUserEndpoint endpoint.Endpoint
	UpdateUserEndpoint endpoint.Endpoint
	DeleteUserEndpoint endpoint.Endpoint
}

func New(svc userservice.Service, logger log.Logger) Set {
	var usersEndpoint endpoint.Endpoint
	{
		usersEndpoint = MakeUsersEndpoint(svc)
		usersEndpoint = LoggingMiddleware(log.With(logger, "method", "Users"))(usersEndpoint)
	}
	var userEndpoint endpoint.Endpoint
	{
		userEndpoint = MakeUserEndpoint(svc)
		userEndpoint = LoggingMiddleware(log.With(logger, "method", "User"))(userEndpoint)
	}
	var createUserEndpoint endpoint.Endpoint
	{
		createUserEndpoint = MakeCreateUserEndpoint(svc)
		createUserEndpoint = LoggingMiddleware(log.With(logger, "method", "CreateUser"))(createUserEndpoint)
	}
	var updateUserEndpoint endpoint.Endpoint
	{
		updateUserEndpoint = MakeUpdateUserEndpoint(svc)
		updateUserEndpoint = LoggingMiddleware(log.With(logger, "method", "UpdateUser"))(updateUserEndpoint)
	}
	var deleteUserEndpoint endpoint.Endpoint
	{
		deleteUserEndpoint = MakeDeleteUserEndpoint(svc)
		deleteUserEndpoint = LoggingMiddleware(log.With(logger, "method", "DeleteUser"))(deleteUserEndpoint)
	}

	return Set{
		UsersEndpoint:      usersEndpoint,
		UserEndpoint:       userEndpoint,
		CreateUserEndpoint: createUserEndpoint,
		UpdateUserEndpoint: updateUserEndpoint,
		DeleteUserEndpoint: deleteUserEndpoint,
	}
}

func (s Set) Users(ctx context.Context) ([]usersvc.User, error) {
	resp, err := s.UsersEndpoint(ctx, UsersRequest{})
	if err != nil {
		return nil, err
	}
	response := resp.(UsersResponse)
	return response.Users, response.Err
}

func (s Set) User(ctx context.Context, userID uint64) (usersvc.User, error) {
	resp, err := s.UserEndpoint(ctx, UserRequest{UserID: userID})
	if err != nil {
		return usersvc.User{}, err
	}
	response := resp.(UserResponse)
	return response.User, response.Err
}

func (s Set) CreateUser(ctx context.Context, name, email string) (usersvc.User, error) {
	resp, err := s.CreateUserEndpoint(ctx, CreateUserRequest{Name: name, Email: email})
	if err != nil {
		return usersvc.User{}, err
	}
	response := resp.(CreateUserResponse)
	return response.User, response.Err
}

func (s Set) UpdateUser(ctx context.Context, userID uint64, name, email string) (usersvc.User, error) {
	resp, err := s.UpdateUserEndpoint(ctx, UpdateUserRequest{UserID: userID, Name: name, Email: email})
	if err != nil {
		return usersvc.User{}, err
	}
	response := resp.(UpdateUserResponse)
	return response.User, response.Err
}

func (s Set) DeleteUser(ctx context.Context, userID uint64) error {
	resp, err := s.DeleteUserEndpoint(ctx, DeleteUserRequest{UserID: userID})
	if err != nil {
		return err
	}
	response := resp.(DeleteUserResponse)
	return response.Err
}

func MakeUsersEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		_ = request.(UsersRequest)
		u, err := s.Users(ctx)
		return UsersResponse{Users: u, Err: err}, nil
	}
}

func MakeUserEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(UserRequest)
		u, err := s.User(ctx, req.UserID)
		return UserResponse{User: u, Err: err}, nil
	}
}

func MakeCreateUserEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(CreateUserRequest)
		u, err := s.CreateUser(ctx, req.Name, req.Email)
		return CreateUserResponse{User: u, Err: err}, nil
	}
}

func MakeUpdateUserEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(UpdateUserRequest)
		u, err := s.UpdateUser(ctx, req.UserID, req.Name, req.Email)
		return UpdateUserResponse{User: u, Err: err}, nil
	}
}

func MakeDeleteUserEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(DeleteUserRequest)
		err = s.DeleteUser(ctx, req.UserID)
		return DeleteUserResponse{Err: err}, nil
	}
}

var (
	_ endpoint.Failer = UsersResponse{}
	_ endpoint.Failer = UserResponse{}
	_ endpoint.Failer = CreateUserResponse{}
	_ endpoint.Failer = UpdateUserResponse{}
	_ endpoint.Failer = DeleteUserResponse{}

	_ httptransport.StatusCoder = CreateUserResponse{}
	_ httptransport.StatusCoder = DeleteUserResponse{}
)

type UsersRequest struct{}

type UsersResponse struct {
	Users []usersvc.User
	Err   error
}

func (r UsersResponse) Failed() error { return r.Err }

func (r UsersResponse) MarshalJSON() ([]byte, error) {
	if r.Users == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Users)
}

type UserRequest struct {
	UserID uint64
}

type UserResponse struct {
	User usersvc.User
	Err  error
}

func (r UserResponse) Failed() error { return r.Err }

func (r UserResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.User) }

type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

type CreateUserResponse struct {
	User usersvc.User
	Err  error
}

func (r CreateUserResponse) Failed() error { return r.Err }

func (r CreateUserResponse) StatusCode() int { return http.StatusCreated }

func (r CreateUserResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.User) }

type UpdateUserRequest struct {
	UserID uint64 `json:"-"`
	Name   string `json:"name" validate:"required,max=255"`
	Email  string `json:"email" validate:"required,email,max=255"`
}

type UpdateUserResponse struct {
	User usersvc.User
	Err  error
}

func (r UpdateUserResponse) Failed() error { return r.Err }

func (r UpdateUserResponse) MarshalJSON() ([]byte, error) { return json.Marshal(r.User) }

type DeleteUserRequest struct {
	UserID uint64
}

type DeleteUserResponse struct {
	Err error
}

func (r DeleteUserResponse) Failed() error { return r.Err }

func (r DeleteUserResponse) StatusCode() int { return http.StatusNoContent }
