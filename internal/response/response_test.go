package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{name: "should write VALIDATION_ERROR", write: func(w http.ResponseWriter) { ValidationError(w, "bad input") }, wantStatus: 400, wantCode: "VALIDATION_ERROR"},
		{name: "should write UNAUTHORIZED", write: func(w http.ResponseWriter) { Unauthorized(w, "no token") }, wantStatus: 401, wantCode: "UNAUTHORIZED"},
		{name: "should write INVALID_CREDENTIALS", write: func(w http.ResponseWriter) { InvalidCredentials(w) }, wantStatus: 401, wantCode: "INVALID_CREDENTIALS"},
		{name: "should write FORBIDDEN", write: func(w http.ResponseWriter) { Forbidden(w, "nope") }, wantStatus: 403, wantCode: "FORBIDDEN"},
		{name: "should write NOT_FOUND", write: func(w http.ResponseWriter) { NotFound(w, "gone") }, wantStatus: 404, wantCode: "NOT_FOUND"},
		{name: "should write CONFLICT", write: func(w http.ResponseWriter) { Conflict(w, "dup") }, wantStatus: 409, wantCode: "CONFLICT"},
		{name: "should write INTERNAL_ERROR", write: func(w http.ResponseWriter) { InternalError(w, "boom") }, wantStatus: 500, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestOKAndCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"hello": "world"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Created(rec, map[string]bool{"created": true})
	assert.Equal(t, http.StatusCreated, rec.Code)
}
