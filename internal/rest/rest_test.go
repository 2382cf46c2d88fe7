package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errThingMissing = errors.New("thing not found")

func TestEncodeErrorDomain(t *testing.T) {
	w := httptest.NewRecorder()
	EncodeError(w, http.StatusNotFound, errThingMissing)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, []string{"thing not found"}, body.Messages)
	assert.False(t, body.Timestamp.IsZero())
}

func TestEncodeErrorValidation(t *testing.T) {
	w := httptest.NewRecorder()
	EncodeError(w, http.StatusBadRequest, ValidationError{Messages: []string{"name: is required"}})

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Validation Failed", body.Error)
	assert.Equal(t, []string{"name: is required"}, body.Messages)
}

func TestEncodeErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	EncodeError(w, http.StatusInternalServerError, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), "An unexpected error occurred")
}

func TestRemoteErrorRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		code int
		err  error
		want error
	}{
		{"sentinel", http.StatusNotFound, errThingMissing, errThingMissing},
		{"validation", http.StatusBadRequest, ValidationError{Messages: []string{"a: is required", "b: is required"}}, ValidationError{Messages: []string{"a: is required", "b: is required"}}},
		{"unknown", http.StatusConflict, errors.New("boom"), StatusError{Code: http.StatusConflict, Messages: []string{"boom"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			EncodeError(w, tc.code, tc.err)

			got := RemoteError(DecodeError(w.Result()), errThingMissing)
			assert.Equal(t, tc.want, got)

			code, ok := Code(got)
			if errors.Is(got, errThingMissing) {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestDecodeErrorNonJSONBody(t *testing.T) {
	resp := &http.Response{
		Status:     "404 Not Found",
		StatusCode: http.StatusNotFound,
		Body:       http.NoBody,
	}

	body := DecodeError(resp)
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Equal(t, []string{"404 Not Found"}, body.Messages)
	assert.True(t, strings.HasPrefix(RemoteError(body).Error(), "404"))
}

func TestValidate(t *testing.T) {
	type request struct {
		Name   string `json:"name" validate:"required"`
		Email  string `json:"email" validate:"required,email"`
		Status string `json:"status" validate:"omitempty,oneof=Pending Completed"`
	}

	assert.NoError(t, Validate(request{Name: "Ana", Email: "ana@x.com"}))

	err := Validate(request{Email: "not-an-email", Status: "Done"})
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{
		"name: is required",
		"email: must be a valid email address",
		"status: must be one of Pending, Completed",
	}, verr.Messages)
}
