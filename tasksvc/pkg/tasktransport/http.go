package tasktransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stdjwt "github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/ichigozero/taskmesh/backend/internal/rest"
	"github.com/ichigozero/taskmesh/backend/tasksvc"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/taskmesh/backend/tasksvc/pkg/taskservice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// NewHTTPHandler mounts the task API. When secret is non-empty every
// /api route requires an HS256 bearer token signed with it.
func NewHTTPHandler(endpoints taskendpoint.Set, secret []byte, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
		httptransport.ServerBefore(kitjwt.HTTPToContext()),
	}

	guard := func(e endpoint.Endpoint) endpoint.Endpoint { return e }
	if len(secret) > 0 {
		kf := func(token *stdjwt.Token) (interface{}, error) {
			return secret, nil
		}
		guard = kitjwt.NewParser(kf, stdjwt.SigningMethodHS256, kitjwt.MapClaimsFactory)
	}

	tasksHandler := httptransport.NewServer(
		guard(endpoints.TasksEndpoint),
		decodeHTTPTasksRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	taskHandler := httptransport.NewServer(
		guard(endpoints.TaskEndpoint),
		decodeHTTPTaskRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	createTaskHandler := httptransport.NewServer(
		guard(endpoints.CreateTaskEndpoint),
		decodeHTTPCreateTaskRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	updateTaskHandler := httptransport.NewServer(
		guard(endpoints.UpdateTaskEndpoint),
		decodeHTTPUpdateTaskRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	deleteTaskHandler := httptransport.NewServer(
		guard(endpoints.DeleteTaskEndpoint),
		decodeHTTPDeleteTaskRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	countByUserHandler := httptransport.NewServer(
		guard(endpoints.CountByUserEndpoint),
		decodeHTTPCountByUserRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	r := mux.NewRouter()

	r.Methods("GET").Path("/api/tasks").Handler(tasksHandler)
	r.Methods("POST").Path("/api/tasks").Handler(createTaskHandler)
	r.Methods("GET").Path("/api/tasks/count/by-user/{userId}").Handler(countByUserHandler)
	r.Methods("GET").Path("/api/tasks/{id}").Handler(taskHandler)
	r.Methods("PUT").Path("/api/tasks/{id}").Handler(updateTaskHandler)
	r.Methods("DELETE").Path("/api/tasks/{id}").Handler(deleteTaskHandler)
	r.Methods("GET").Path("/health").HandlerFunc(health)
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	return r
}

// NewHTTPClient returns a service backed by the task API at instance. Each
// call is bounded by timeout and guarded by a rate limiter and a circuit
// breaker. The caller's bearer token, if any, is forwarded.
func NewHTTPClient(instance string, timeout time.Duration, logger log.Logger) (taskservice.Service, error) {
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}

	options := []httptransport.ClientOption{
		httptransport.SetClient(&http.Client{Timeout: timeout}),
		httptransport.ClientBefore(kitjwt.ContextToHTTP()),
	}

	guard := func(name string, e endpoint.Endpoint) endpoint.Endpoint {
		e = ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Limit(100), 100))(e)
		e = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Log("breaker", name, "instance", u.Host, "from", from, "to", to)
			},
		}))(e)
		return e
	}

	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/api/tasks"),
			encodeHTTPTasksRequest,
			decodeHTTPTasksResponse,
			options...,
		).Endpoint()
		tasksEndpoint = guard("Tasks", tasksEndpoint)
	}
	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/api/tasks"),
			encodeHTTPTaskRequest,
			decodeHTTPTaskResponse,
			options...,
		).Endpoint()
		taskEndpoint = guard("Task", taskEndpoint)
	}
	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/api/tasks"),
			encodeHTTPGenericRequest,
			decodeHTTPCreateTaskResponse,
			options...,
		).Endpoint()
		createTaskEndpoint = guard("CreateTask", createTaskEndpoint)
	}
	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = httptransport.NewClient(
			"PUT",
			copyURL(u, "/api/tasks"),
			encodeHTTPUpdateTaskRequest,
			decodeHTTPUpdateTaskResponse,
			options...,
		).Endpoint()
		updateTaskEndpoint = guard("UpdateTask", updateTaskEndpoint)
	}
	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = httptransport.NewClient(
			"DELETE",
			copyURL(u, "/api/tasks"),
			encodeHTTPDeleteTaskRequest,
			decodeHTTPDeleteTaskResponse,
			options...,
		).Endpoint()
		deleteTaskEndpoint = guard("DeleteTask", deleteTaskEndpoint)
	}
	var countByUserEndpoint endpoint.Endpoint
	{
		countByUserEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/api/tasks/count/by-user"),
			encodeHTTPCountByUserRequest,
			decodeHTTPCountByUserResponse,
			options...,
		).Endpoint()
		countByUserEndpoint = guard("CountByUser", countByUserEndpoint)
	}

	return taskendpoint.Set{
		TasksEndpoint:       tasksEndpoint,
		TaskEndpoint:        taskEndpoint,
		CreateTaskEndpoint:  createTaskEndpoint,
		UpdateTaskEndpoint:  updateTaskEndpoint,
		DeleteTaskEndpoint:  deleteTaskEndpoint,
		CountByUserEndpoint: countByUserEndpoint,
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = strings.TrimSuffix(base.Path, "/") + path
	return &next
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	rest.EncodeError(w, err2code(err), err)
}

func err2code(err error) int {
	if code, ok := rest.Code(err); ok {
		return code
	}
	switch {
	case errors.Is(err, tasksvc.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, tasksvc.ErrInvalidArgument),
		errors.Is(err, tasksvc.ErrTaskCompleted),
		errors.Is(err, tasksvc.ErrUserNotFound):
		return http.StatusBadRequest
	case unauthorized(err):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func unauthorized(err error) bool {
	switch {
	case errors.Is(err, kitjwt.ErrTokenContextMissing),
		errors.Is(err, kitjwt.ErrTokenInvalid),
		errors.Is(err, kitjwt.ErrTokenExpired),
		errors.Is(err, kitjwt.ErrTokenMalformed),
		errors.Is(err, kitjwt.ErrTokenNotActive),
		errors.Is(err, kitjwt.ErrUnexpectedSigningMethod),
		errors.Is(err, stdjwt.ErrSignatureInvalid):
		return true
	}
	var verr *stdjwt.ValidationError
	return errors.As(err, &verr)
}

// str2err maps an error response from the task API back to the errors the
// service returns in-process.
func str2err(r *http.Response) error {
	return rest.RemoteError(
		rest.DecodeError(r),
		tasksvc.ErrInvalidArgument,
		tasksvc.ErrTaskNotFound,
		tasksvc.ErrTaskCompleted,
		tasksvc.ErrUserNotFound,
	)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{"status": "UP"})
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil || id == 0 {
		return 0, rest.Malformed(name, "must be a positive integer")
	}
	return id, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return rest.Malformed("", "malformed JSON request body")
	}
	return rest.Validate(v)
}

func decodeHTTPTasksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	req := taskendpoint.TasksRequest{Status: q.Get("status")}
	if v := q.Get("userId"); v != "" {
		userID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, rest.Malformed("userId", "must be a positive integer")
		}
		req.UserID = &userID
	}
	if err := rest.Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	return taskendpoint.TaskRequest{TaskID: taskID}, nil
}

func decodeHTTPCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req taskendpoint.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	var req taskendpoint.UpdateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.TaskID = taskID

	return req, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	taskID, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	return taskendpoint.DeleteTaskRequest{TaskID: taskID}, nil
}

func decodeHTTPCountByUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	userID, err := pathID(r, "userId")
	if err != nil {
		return nil, err
	}
	return taskendpoint.CountByUserRequest{UserID: userID}, nil
}

func encodeHTTPTasksRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.TasksRequest)
	q := url.Values{}
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	if req.UserID != nil {
		q.Set("userId", strconv.FormatUint(*req.UserID, 10))
	}
	r.URL.RawQuery = q.Encode()
	return nil
}

func encodeHTTPTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.TaskRequest)
	r.URL.Path += "/" + strconv.FormatUint(req.TaskID, 10)
	return nil
}

func encodeHTTPUpdateTaskRequest(ctx context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.UpdateTaskRequest)
	r.URL.Path += "/" + strconv.FormatUint(req.TaskID, 10)
	return encodeHTTPGenericRequest(ctx, r, req)
}

func encodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.DeleteTaskRequest)
	r.URL.Path += "/" + strconv.FormatUint(req.TaskID, 10)
	return nil
}

func encodeHTTPCountByUserRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.CountByUserRequest)
	r.URL.Path += "/" + strconv.FormatUint(req.UserID, 10)
	return nil
}

func encodeHTTPGenericRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Body = io.NopCloser(&buf)
	return nil
}

// failed splits an error response into a business error, carried in the
// endpoint response, and a server error returned as the endpoint error so
// the breaker counts it.
func failed(r *http.Response) (berr, terr error) {
	switch {
	case r.StatusCode >= http.StatusInternalServerError:
		return nil, str2err(r)
	case r.StatusCode >= http.StatusBadRequest:
		return str2err(r), nil
	}
	return nil, nil
}

func decodeHTTPTasksResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return taskendpoint.TasksResponse{Err: berr}, nil
	}
	var resp taskendpoint.TasksResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Tasks)
	return resp, err
}

func decodeHTTPTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return taskendpoint.TaskResponse{Err: berr}, nil
	}
	var resp taskendpoint.TaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Task)
	return resp, err
}

func decodeHTTPCreateTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return taskendpoint.CreateTaskResponse{Err: berr}, nil
	}
	var resp taskendpoint.CreateTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Task)
	return resp, err
}

func decodeHTTPUpdateTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return taskendpoint.UpdateTaskResponse{Err: berr}, nil
	}
	var resp taskendpoint.UpdateTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Task)
	return resp, err
}

func decodeHTTPDeleteTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	berr, terr := failed(r)
	if terr != nil {
		return nil, terr
	}
	return taskendpoint.DeleteTaskResponse{Err: berr}, nil
}

func decodeHTTPCountByUserResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return taskendpoint.CountByUserResponse{Err: berr}, nil
	}
	var resp taskendpoint.CountByUserResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Count)
	return resp, err
}

func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		errorEncoder(ctx, f.Failed(), w)
		return nil
	}

	code := http.StatusOK
	if sc, ok := response.(httptransport.StatusCoder); ok {
		code = sc.StatusCode()
	}
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return nil
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(response)
}
