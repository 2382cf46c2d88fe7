package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	"github.com/ichigozero/taskmesh/backend/internal/db"
	"github.com/ichigozero/taskmesh/backend/internal/peertest"
	"github.com/ichigozero/taskmesh/backend/usersvc"
	"github.com/ichigozero/taskmesh/backend/usersvc/db/gorm"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userendpoint"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userservice"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/usertransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstance(t *testing.T) (*httptest.Server, userservice.Service) {
	t.Helper()

	conn, err := db.OpenInMemory(&usersvc.User{})
	require.NoError(t, err)

	logger := log.NewNopLogger()
	svc := userservice.New(gorm.NewUserRepository(conn), peertest.NewTasks(), logger)
	srv := httptest.NewServer(usertransport.NewHTTPHandler(userendpoint.New(svc, logger), nil, logger))
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestUserLookup(t *testing.T) {
	ctx := context.Background()
	srv, svc := newInstance(t)

	ana, err := svc.CreateUser(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)

	endpoints, err := NewWithInstancer(sd.FixedInstancer{srv.Listener.Addr().String()}, log.NewNopLogger(), 3, time.Second)
	require.NoError(t, err)
	lookup := NewUserLookup(endpoints, log.NewNopLogger())

	require.Eventually(t, func() bool {
		return lookup.UserExists(ctx, ana.ID) == nil
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, lookup.UserExists(ctx, ana.ID+1), usersvc.ErrUserNotFound)

	users, err := endpoints.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserLookupUnreachable(t *testing.T) {
	srv, _ := newInstance(t)
	addr := srv.Listener.Addr().String()
	srv.Close()

	endpoints, err := NewWithInstancer(sd.FixedInstancer{addr}, log.NewNopLogger(), 1, 200*time.Millisecond)
	require.NoError(t, err)

	err = NewUserLookup(endpoints, log.NewNopLogger()).UserExists(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, usersvc.ErrUserNotFound))
}
