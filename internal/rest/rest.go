// Package rest holds the HTTP error contract shared by the task and user
// services: the error body, request validation and the errors rebuilt from
// a peer's error responses.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ichigozero/taskmesh/backend/internal/jsontime"
)

// ErrorBody is written for every failed request.
type ErrorBody struct {
	Timestamp jsontime.Time `json:"timestamp"`
	Status    int           `json:"status"`
	Error     string        `json:"error"`
	Messages  []string      `json:"messages"`
}

const (
	validationFailed  = "Validation Failed"
	unexpectedMessage = "An unexpected error occurred"
)

// ValidationError reports malformed or missing request fields.
type ValidationError struct {
	Messages []string
}

func (e ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// StatusError is an error response from a peer that maps to no known error.
type StatusError struct {
	Code     int
	Messages []string
}

func (e StatusError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("peer responded %d %s", e.Code, http.StatusText(e.Code))
	}
	return strings.Join(e.Messages, "; ")
}

// Code returns the status carried by a ValidationError or StatusError.
func Code(err error) (int, bool) {
	var verr ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, true
	}
	var serr StatusError
	if errors.As(err, &serr) {
		return serr.Code, true
	}
	return 0, false
}

// EncodeError writes err as an ErrorBody. Server errors never leak their
// message.
func EncodeError(w http.ResponseWriter, code int, err error) {
	body := ErrorBody{
		Timestamp: jsontime.New(time.Now()),
		Status:    code,
		Error:     http.StatusText(code),
	}

	var (
		verr ValidationError
		serr StatusError
	)
	switch {
	case code >= http.StatusInternalServerError:
		body.Messages = []string{unexpectedMessage}
	case errors.As(err, &verr):
		body.Error = validationFailed
		body.Messages = verr.Messages
	case errors.As(err, &serr) && len(serr.Messages) > 0:
		body.Messages = serr.Messages
	default:
		body.Messages = []string{err.Error()}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// DecodeError reads the ErrorBody of a failed peer response. Bodies that
// are not ErrorBody JSON yield the status line as the only message.
func DecodeError(r *http.Response) ErrorBody {
	var body ErrorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
		body.Messages = []string{r.Status}
	}
	body.Status = r.StatusCode
	return body
}

// RemoteError rebuilds the error described by body. Messages matching one of
// known are returned as that sentinel so callers can keep using errors.Is.
func RemoteError(body ErrorBody, known ...error) error {
	if body.Error == validationFailed {
		return ValidationError{Messages: body.Messages}
	}
	if len(body.Messages) == 1 {
		for _, err := range known {
			if body.Messages[0] == err.Error() {
				return err
			}
		}
	}
	return StatusError{Code: body.Status, Messages: body.Messages}
}
