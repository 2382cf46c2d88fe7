package userservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskmesh/backend/usersvc"
)

type Service interface {
	Users(ctx context.Context) ([]usersvc.User, error)
	User(ctx context.Context, userID uint64) (usersvc.User, error)
	CreateUser(ctx context.Context, name, email string) (usersvc.User, error)
	UpdateUser(ctx context.Context, userID uint64, name, email string) (usersvc.User, error)
	DeleteUser(ctx context.Context, userID uint64) error
}

func New(u usersvc.UserRepository, t usersvc.TaskCounter, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(u, t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

func NewBasicService(u usersvc.UserRepository, t usersvc.TaskCounter) Service {
	return basicService{users: u, tasks: t}
}

type basicService struct {
	users usersvc.UserRepository
	tasks usersvc.TaskCounter
}

func (s basicService) Users(ctx context.Context) ([]usersvc.User, error) {
	return s.users.FindAll(ctx)
}

func (s basicService) User(ctx context.Context, userID uint64) (usersvc.User, error) {
	if userID == 0 {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}
	return s.users.Find(ctx, userID)
}

func (s basicService) CreateUser(ctx context.Context, name, email string) (usersvc.User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return usersvc.User{}, usersvc.ErrInvalidArgument
	}

	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return usersvc.User{}, err
	}
	if taken {
		return usersvc.User{}, usersvc.ErrEmailTaken
	}

	return s.users.Create(ctx, name, email)
}

func (s basicService) UpdateUser(ctx context.Context, userID uint64, name, email string) (usersvc.User, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
		return usersvc.User{}, usersvc.ErrInvalidArgument
	}

	user, err := s.User(ctx, userID)
	if err != nil {
		return usersvc.User{}, err
	}

	if email != user.Email {
		taken, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return usersvc.User{}, err
		}
		if taken {
			return usersvc.User{}, usersvc.ErrEmailTaken
		}
	}

	user.Name = name
	user.Email = email
	return s.users.Update(ctx, user)
}

// DeleteUser refuses to remove a user that still owns tasks. When the task
// service cannot answer, the user is kept and the failure is returned.
func (s basicService) DeleteUser(ctx context.Context, userID uint64) error {
	if _, err := s.User(ctx, userID); err != nil {
		return err
	}

	n, err := s.tasks.CountByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("count tasks of user %d: %w", userID, err)
	}
	if n > 0 {
		return usersvc.ErrUserHasTasks
	}

	return s.users.Delete(ctx, userID)
}
