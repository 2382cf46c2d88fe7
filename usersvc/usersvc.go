package usersvc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ichigozero/taskmesh/backend/internal/jsontime"
)

type User struct {
	ID        uint64    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
}

type userJSON struct {
	ID        uint64        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	CreatedAt jsontime.Time `json:"createdAt"`
}

func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(userJSON{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: jsontime.New(u.CreatedAt),
	})
}

func (u *User) UnmarshalJSON(b []byte) error {
	var v userJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*u = User{ID: v.ID, Name: v.Name, Email: v.Email, CreatedAt: v.CreatedAt.Time}
	return nil
}

type UserRepository interface {
	Create(ctx context.Context, name, email string) (User, error)
	FindAll(ctx context.Context) ([]User, error)
	Find(ctx context.Context, id uint64) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user User) (User, error)
	Delete(ctx context.Context, id uint64) error
}

// TaskCounter reports how many tasks reference a user. It is served by the
// task service and must not report zero when the count is unknown.
type TaskCounter interface {
	CountByUser(ctx context.Context, userID uint64) (int64, error)
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrUserHasTasks    = errors.New("user has associated tasks and cannot be deleted")
)
