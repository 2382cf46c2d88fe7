package gorm

import (
	"context"
	"testing"

	"github.com/ichigozero/taskmesh/backend/internal/db"
	"github.com/ichigozero/taskmesh/backend/usersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) usersvc.UserRepository {
	t.Helper()

	conn, err := db.OpenInMemory(&usersvc.User{})
	require.NoError(t, err)

	return NewUserRepository(conn)
}

func TestUserRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	created, err := repo.Create(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	found, err := repo.Find(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Ana", found.Name)
	assert.Equal(t, "ana@x.com", found.Email)
}

func TestUserRepositoryFindMissing(t *testing.T) {
	_, err := newRepository(t).Find(context.Background(), 42)
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)
}

func TestUserRepositoryUniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	_, err := repo.Create(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "Another Ana", "ana@x.com")
	assert.ErrorIs(t, err, usersvc.ErrEmailTaken)

	bob, err := repo.Create(ctx, "Bob", "bob@x.com")
	require.NoError(t, err)

	bob.Email = "ana@x.com"
	_, err = repo.Update(ctx, bob)
	assert.ErrorIs(t, err, usersvc.ErrEmailTaken)
}

func TestUserRepositoryExistsByEmail(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	ok, err := repo.ExistsByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Create(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)

	ok, err = repo.ExistsByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserRepositoryFindAllInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	users, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)

	for _, name := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, name, name+"@x.com")
		require.NoError(t, err)
	}

	users, err = repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "a", users[0].Name)
	assert.Equal(t, "c", users[2].Name)
}

func TestUserRepositoryUpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	created, err := repo.Create(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)

	created.Name = "Ana Maria"
	created.Email = "anamaria@x.com"
	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)

	assert.Equal(t, "Ana Maria", updated.Name)
	assert.Equal(t, "anamaria@x.com", updated.Email)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
}

func TestUserRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	created, err := repo.Create(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), usersvc.ErrUserNotFound)

	_, err = repo.Find(ctx, created.ID)
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)
}
