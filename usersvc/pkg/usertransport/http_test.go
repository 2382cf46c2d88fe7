package usertransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/taskmesh/backend/internal/db"
	"github.com/ichigozero/taskmesh/backend/internal/peertest"
	"github.com/ichigozero/taskmesh/backend/internal/rest"
	taskclient "github.com/ichigozero/taskmesh/backend/tasksvc/client"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/tasktransport"
	"github.com/ichigozero/taskmesh/backend/usersvc"
	"github.com/ichigozero/taskmesh/backend/usersvc/db/gorm"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userendpoint"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, tasks usersvc.TaskCounter) *httptest.Server {
	t.Helper()

	conn, err := db.OpenInMemory(&usersvc.User{})
	require.NoError(t, err)

	logger := log.NewNopLogger()
	svc := userservice.New(gorm.NewUserRepository(conn), tasks, logger)
	srv := httptest.NewServer(NewHTTPHandler(userendpoint.New(svc, logger), nil, logger))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorBody(t *testing.T, resp *http.Response) rest.ErrorBody {
	t.Helper()

	var body rest.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCreateUser(t *testing.T) {
	srv := newServer(t, peertest.NewTasks())

	resp := do(t, "POST", srv.URL+"/api/users", `{"name":"Ana","email":"ana@x.com"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "Ana", body["name"])
	assert.Equal(t, "ana@x.com", body["email"])
	assert.Regexp(t, `^\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}$`, body["createdAt"])

	resp = do(t, "POST", srv.URL+"/api/users", `{"name":"Ana 2","email":"ana@x.com"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{"email already registered"}, errorBody(t, resp).Messages)
}

func TestCreateUserValidation(t *testing.T) {
	srv := newServer(t, peertest.NewTasks())

	resp := do(t, "POST", srv.URL+"/api/users", `{"name":"","email":"not-an-email"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := errorBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, "Validation Failed", body.Error)
	assert.ElementsMatch(t, []string{
		"name: is required",
		"email: must be a valid email address",
	}, body.Messages)

	resp = do(t, "GET", srv.URL+"/api/users", "")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestUserRoutes(t *testing.T) {
	srv := newServer(t, peertest.NewTasks())

	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/api/users", `{"name":"Ana","email":"ana@x.com"}`).StatusCode)
	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/api/users", `{"name":"Bia","email":"bia@x.com"}`).StatusCode)

	resp := do(t, "PUT", srv.URL+"/api/users/1", `{"name":"Ana Maria","email":"ana@x.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ana usersvc.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ana))
	assert.Equal(t, "Ana Maria", ana.Name)

	resp = do(t, "PUT", srv.URL+"/api/users/1", `{"name":"Ana","email":"bia@x.com"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, "GET", srv.URL+"/api/users", "")
	var users []usersvc.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 2)
	assert.Equal(t, "ana@x.com", users[0].Email)
	assert.Equal(t, "bia@x.com", users[1].Email)

	resp = do(t, "GET", srv.URL+"/api/users/7", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := errorBody(t, resp)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, []string{"user not found"}, body.Messages)

	assert.Equal(t, http.StatusBadRequest, do(t, "GET", srv.URL+"/api/users/0", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, do(t, "DELETE", srv.URL+"/api/users/-1", "").StatusCode)
}

func TestDeleteUser(t *testing.T) {
	tasks := peertest.NewTasks()
	srv := newServer(t, tasks)

	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/api/users", `{"name":"Ana","email":"ana@x.com"}`).StatusCode)
	tasks.Set(1, 2)

	resp := do(t, "DELETE", srv.URL+"/api/users/1", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{"user has associated tasks and cannot be deleted"}, errorBody(t, resp).Messages)

	tasks.Set(1, 0)
	resp = do(t, "DELETE", srv.URL+"/api/users/1", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, http.StatusNotFound, do(t, "GET", srv.URL+"/api/users/1", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, "DELETE", srv.URL+"/api/users/1", "").StatusCode)
}

func TestDeleteUserTaskServiceDown(t *testing.T) {
	tasks := peertest.NewTasks()
	srv := newServer(t, tasks)

	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/api/users", `{"name":"Ana","email":"ana@x.com"}`).StatusCode)
	tasks.Fail(errors.New("dial tcp: connection refused"))

	resp := do(t, "DELETE", srv.URL+"/api/users/1", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := errorBody(t, resp)
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.Equal(t, []string{"An unexpected error occurred"}, body.Messages)

	assert.Equal(t, http.StatusOK, do(t, "GET", srv.URL+"/api/users/1", "").StatusCode)
}

func TestDeleteUserTaskServiceNotFound(t *testing.T) {
	peer := httptest.NewServer(http.NotFoundHandler())
	defer peer.Close()

	logger := log.NewNopLogger()
	svc, err := tasktransport.NewHTTPClient(peer.URL, time.Second, logger)
	require.NoError(t, err)
	srv := newServer(t, taskclient.NewTaskCounter(svc.(taskendpoint.Set), logger))

	require.Equal(t, http.StatusCreated, do(t, "POST", srv.URL+"/api/users", `{"name":"Ana","email":"ana@x.com"}`).StatusCode)

	resp := do(t, "DELETE", srv.URL+"/api/users/1", "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := errorBody(t, resp)
	assert.Equal(t, []string{"An unexpected error occurred"}, body.Messages)

	assert.Equal(t, http.StatusOK, do(t, "GET", srv.URL+"/api/users/1", "").StatusCode)
}

func TestHTTPClient(t *testing.T) {
	ctx := context.Background()
	tasks := peertest.NewTasks()
	srv := newServer(t, tasks)

	svc, err := NewHTTPClient(srv.URL, time.Second, log.NewNopLogger())
	require.NoError(t, err)

	ana, err := svc.CreateUser(ctx, "Ana", "ana@x.com")
	require.NoError(t, err)
	assert.NotZero(t, ana.ID)
	assert.False(t, ana.CreatedAt.IsZero())

	_, err = svc.CreateUser(ctx, "Ana", "ana@x.com")
	assert.ErrorIs(t, err, usersvc.ErrEmailTaken)

	_, err = svc.CreateUser(ctx, "Ana", "nope")
	var verr rest.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email: must be a valid email address"}, verr.Messages)

	found, err := svc.User(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", found.Email)

	updated, err := svc.UpdateUser(ctx, ana.ID, "Ana Maria", "ana.maria@x.com")
	require.NoError(t, err)
	assert.Equal(t, "ana.maria@x.com", updated.Email)

	users, err := svc.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	tasks.Set(ana.ID, 1)
	assert.ErrorIs(t, svc.DeleteUser(ctx, ana.ID), usersvc.ErrUserHasTasks)

	tasks.Set(ana.ID, 0)
	require.NoError(t, svc.DeleteUser(ctx, ana.ID))

	_, err = svc.User(ctx, ana.ID)
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)
}

func TestHTTPClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc, err := NewHTTPClient(srv.URL, time.Second, log.NewNopLogger())
	require.NoError(t, err)

	_, err = svc.User(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, usersvc.ErrUserNotFound))
	code, ok := rest.Code(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, code)
}
