package gorm

import (
	"context"
	"errors"

	"github.com/ichigozero/taskmesh/backend/usersvc"
	libgorm "gorm.io/gorm"
)

type userRepository struct {
	db *libgorm.DB
}

// NewUserRepository expects db to be opened with TranslateError so the
// unique email index reports gorm.ErrDuplicatedKey.
func NewUserRepository(db *libgorm.DB) usersvc.UserRepository {
	return &userRepository{db}
}

func (u *userRepository) Create(ctx context.Context, name, email string) (usersvc.User, error) {
	user := usersvc.User{Name: name, Email: email}
	result := u.db.WithContext(ctx).Create(&user)

	return user, translate(result.Error)
}

func (u *userRepository) FindAll(ctx context.Context) ([]usersvc.User, error) {
	users := []usersvc.User{}
	result := u.db.WithContext(ctx).Order("id").Find(&users)

	return users, result.Error
}

func (u *userRepository) Find(ctx context.Context, id uint64) (usersvc.User, error) {
	var user usersvc.User
	result := u.db.WithContext(ctx).First(&user, id)

	return user, translate(result.Error)
}

func (u *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var n int64
	result := u.db.WithContext(ctx).Model(&usersvc.User{}).Where("email = ?", email).Count(&n)

	return n > 0, result.Error
}

func (u *userRepository) Update(ctx context.Context, user usersvc.User) (usersvc.User, error) {
	result := u.db.WithContext(ctx).Model(&usersvc.User{ID: user.ID}).Updates(
		map[string]interface{}{
			"name":  user.Name,
			"email": user.Email,
		})
	if result.Error != nil {
		return usersvc.User{}, translate(result.Error)
	}

	return u.Find(ctx, user.ID)
}

func (u *userRepository) Delete(ctx context.Context, id uint64) error {
	result := u.db.WithContext(ctx).Delete(&usersvc.User{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usersvc.ErrUserNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, libgorm.ErrRecordNotFound):
		return usersvc.ErrUserNotFound
	case errors.Is(err, libgorm.ErrDuplicatedKey):
		return usersvc.ErrEmailTaken
	}
	return err
}
