package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	"github.com/ichigozero/taskmesh/backend/internal/db"
	"github.com/ichigozero/taskmesh/backend/internal/peertest"
	"github.com/ichigozero/taskmesh/backend/internal/rest"
	"github.com/ichigozero/taskmesh/backend/tasksvc"
	"github.com/ichigozero/taskmesh/backend/tasksvc/db/gorm"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskservice"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/tasktransport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCounter(t *testing.T) {
	ctx := context.Background()

	conn, err := db.OpenInMemory(&tasksvc.Task{})
	require.NoError(t, err)

	logger := log.NewNopLogger()
	svc := taskservice.New(gorm.NewTaskRepository(conn), peertest.NewUsers(1), logger)
	srv := httptest.NewServer(tasktransport.NewHTTPHandler(taskendpoint.New(svc, logger), nil, logger))
	defer srv.Close()

	for i := 0; i < 2; i++ {
		_, err := svc.CreateTask(ctx, 1, "t", "", nil)
		require.NoError(t, err)
	}

	endpoints, err := NewWithInstancer(sd.FixedInstancer{srv.Listener.Addr().String()}, logger, 3, time.Second)
	require.NoError(t, err)
	counter := NewTaskCounter(endpoints, logger)

	var n int64
	require.Eventually(t, func() bool {
		n, err = counter.CountByUser(ctx, 1)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), n)

	n, err = counter.CountByUser(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTaskCounterNoInstances(t *testing.T) {
	logger := log.NewNopLogger()

	endpoints, err := NewWithInstancer(sd.FixedInstancer{}, logger, 1, 100*time.Millisecond)
	require.NoError(t, err)

	_, err = NewTaskCounter(endpoints, logger).CountByUser(context.Background(), 1)
	assert.Error(t, err)
}

func TestTaskCounterHidesPeerStatus(t *testing.T) {
	peer := httptest.NewServer(http.NotFoundHandler())
	defer peer.Close()

	logger := log.NewNopLogger()
	svc, err := tasktransport.NewHTTPClient(peer.URL, time.Second, logger)
	require.NoError(t, err)

	_, err = NewTaskCounter(svc.(taskendpoint.Set), logger).CountByUser(context.Background(), 1)
	require.Error(t, err)
	_, ok := rest.Code(err)
	assert.False(t, ok)
}
