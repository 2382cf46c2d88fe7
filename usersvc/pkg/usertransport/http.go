package usertransport

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
	"github.com/ichigozero/taskmesh/backend/usersvc"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userendpoint"
	"github.com/ichigozero/taskmesh/backend/usersvc/pkg/userservice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// NewHTTPHandler mounts the user API. When secret is non-empty every
// /api route requires an HS256 bearer token signed with it.
func NewHTTPHandler(endpoints userendpoint.Set, secret []byte, logger log.Logger) http.Handler {
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

	usersHandler := httptransport.NewServer(
		guard(endpoints.UsersEndpoint),
		decodeHTTPUsersRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	userHandler := httptransport.NewServer(
		guard(endpoints.UserEndpoint),
		decodeHTTPUserRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	createUserHandler := httptransport.NewServer(
		guard(endpoints.CreateUserEndpoint),
		decodeHTTPCreateUserRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	updateUserHandler := httptransport.NewServer(
		guard(endpoints.UpdateUserEndpoint),
		decodeHTTPUpdateUserRequest,
		encodeHTTPGenericResponse,
		options...,
	)
	deleteUserHandler := httptransport.NewServer(
		guard(endpoints.DeleteUserEndpoint),
		decodeHTTPDeleteUserRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	r := mux.NewRouter()

	r.Methods("GET").Path("/api/users").Handler(usersHandler)
	r.Methods("POST").Path("/api/users").Handler(createUserHandler)
	r.Methods("GET").Path("/api/users/{id}").Handler(userHandler)
	r.Methods("PUT").Path("/api/users/{id}").Handler(updateUserHandler)
	r.Methods("DELETE").Path("/api/users/{id}").Handler(deleteUserHandler)
	r.Methods("GET").Path("/health").HandlerFunc(health)
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	return r
}

// NewHTTPClient returns a service backed by the user API at instance. Each
// call is bounded by timeout and guarded by a rate limiter and a circuit
// breaker. The caller's bearer token, if any, is forwarded.
func NewHTTPClient(instance string, timeout time.Duration, logger log.Logger) (userservice.Service, error) {
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

	var usersEndpoint endpoint.Endpoint
	{
		usersEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/api/users"),
			encodeHTTPUsersRequest,
			decodeHTTPUsersResponse,
			options...,
		).Endpoint()
		usersEndpoint = guard("Users", usersEndpoint)
	}
	var userEndpoint endpoint.Endpoint
	{
		userEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, "/api/users"),
			encodeHTTPUserRequest,
			decodeHTTPUserResponse,
			options...,
		).Endpoint()
		userEndpoint = guard("User", userEndpoint)
	}
	var createUserEndpoint endpoint.Endpoint
	{
		createUserEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/api/users"),
			encodeHTTPGenericRequest,
			decodeHTTPCreateUserResponse,
			options...,
		).Endpoint()
		createUserEndpoint = guard("CreateUser", createUserEndpoint)
	}
	var updateUserEndpoint endpoint.Endpoint
	{
		updateUserEndpoint = httptransport.NewClient(
			"PUT",
			copyURL(u, "/api/users"),
			encodeHTTPUpdateUserRequest,
			decodeHTTPUpdateUserResponse,
			options...,
		).Endpoint()
		updateUserEndpoint = guard("UpdateUser", updateUserEndpoint)
	}
	var deleteUserEndpoint endpoint.Endpoint
	{
		deleteUserEndpoint = httptransport.NewClient(
			"DELETE",
			copyURL(u, "/api/users"),
			encodeHTTPDeleteUserRequest,
			decodeHTTPDeleteUserResponse,
			options...,
		).Endpoint()
		deleteUserEndpoint = guard("DeleteUser", deleteUserEndpoint)
	}

	return userendpoint.Set{
		UsersEndpoint:      usersEndpoint,
		UserEndpoint:       userEndpoint,
		CreateUserEndpoint: createUserEndpoint,
		UpdateUserEndpoint: updateUserEndpoint,
		DeleteUserEndpoint: deleteUserEndpoint,
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
	case errors.Is(err, usersvc.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, usersvc.ErrInvalidArgument),
		errors.Is(err, usersvc.ErrEmailTaken),
		errors.Is(err, usersvc.ErrUserHasTasks):
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

func str2err(r *http.Response) error {
	return rest.RemoteError(
		rest.DecodeError(r),
		usersvc.ErrInvalidArgument,
		usersvc.ErrUserNotFound,
		usersvc.ErrEmailTaken,
		usersvc.ErrUserHasTasks,
	)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{"status": "UP"})
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, rest.Malformed("id", "must be a positive integer")
	}
	return id, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return rest.Malformed("", "malformed JSON request body")
	}
	return rest.Validate(v)
}

func decodeHTTPUsersRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return userendpoint.UsersRequest{}, nil
}

func decodeHTTPUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	userID, err := pathID(r)
	if err != nil {
		return nil, err
	}
	return userendpoint.UserRequest{UserID: userID}, nil
}

func decodeHTTPCreateUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req userendpoint.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeHTTPUpdateUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	userID, err := pathID(r)
	if err != nil {
		return nil, err
	}

	var req userendpoint.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.UserID = userID

	return req, nil
}

func decodeHTTPDeleteUserRequest(_ context.Context, r *http.Request) (interface{}, error) {
	userID, err := pathID(r)
	if err != nil {
		return nil, err
	}
	return userendpoint.DeleteUserRequest{UserID: userID}, nil
}

func encodeHTTPUsersRequest(_ context.Context, _ *http.Request, _ interface{}) error {
	return nil
}

func encodeHTTPUserRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(userendpoint.UserRequest)
	r.URL.Path += "/" + strconv.FormatUint(req.UserID, 10)
	return nil
}

func encodeHTTPUpdateUserRequest(ctx context.Context, r *http.Request, request interface{}) error {
	req := request.(userendpoint.UpdateUserRequest)
	r.URL.Path += "/" + strconv.FormatUint(req.UserID, 10)
	return encodeHTTPGenericRequest(ctx, r, req)
}

func encodeHTTPDeleteUserRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(userendpoint.DeleteUserRequest)
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

func decodeHTTPUsersResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return userendpoint.UsersResponse{Err: berr}, nil
	}
	var resp userendpoint.UsersResponse
	err := json.NewDecoder(r.Body).Decode(&resp.Users)
	return resp, err
}

func decodeHTTPUserResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return userendpoint.UserResponse{Err: berr}, nil
	}
	var resp userendpoint.UserResponse
	err := json.NewDecoder(r.Body).Decode(&resp.User)
	return resp, err
}

func decodeHTTPCreateUserResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return userendpoint.CreateUserResponse{Err: berr}, nil
	}
	var resp userendpoint.CreateUserResponse
	err := json.NewDecoder(r.Body).Decode(&resp.User)
	return resp, err
}

func decodeHTTPUpdateUserResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if berr, terr := failed(r); terr != nil {
		return nil, terr
	} else if berr != nil {
		return userendpoint.UpdateUserResponse{Err: berr}, nil
	}
	var resp userendpoint.UpdateUserResponse
	err := json.NewDecoder(r.Body).Decode(&resp.User)
	return resp, err
}

func decodeHTTPDeleteUserResponse(_ context.Context, r *http.Response) (interface{}, error) {
	berr, terr := failed(r)
	if terr != nil {
		return nil, terr
	}
	return userendpoint.DeleteUserResponse{Err: berr}, nil
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
