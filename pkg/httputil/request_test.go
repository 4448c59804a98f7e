package httputil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/contextkeys"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
		expectName  string
	}{
		{
			name:       "valid JSON",
			body:       `{"name": "test"}`,
			expectName: "test",
		},
		{
			name:        "invalid JSON",
			body:        `{invalid}`,
			expectError: true,
		},
		{
			name: "empty body",
			body: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectName, dest["name"])
			}
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{"name": 1`))
	var dest map[string]string

	ok := ParseJSONOrError(w, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name        string
		pathValue   string
		expectValue int64
		expectError bool
	}{
		{
			name:        "valid int64",
			pathValue:   "9223372036854775807",
			expectValue: 9223372036854775807,
		},
		{
			name:        "invalid int64",
			pathValue:   "abc",
			expectError: true,
		},
		{
			name:        "empty value",
			pathValue:   "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test/"+tt.pathValue, nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.pathValue})

			val, err := ParsePathInt64(req, "id")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectValue, val)
			}
		})
	}
}

func TestParsePathInt64OrError_Invalid(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test/abc", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})

	val, ok := ParsePathInt64OrError(w, req, "id")

	assert.False(t, ok)
	assert.Equal(t, int64(0), val)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?all=true&bad=maybe", nil)

	val, err := ParseQueryBool(req, "all", false)
	assert.NoError(t, err)
	assert.True(t, val)

	val, err = ParseQueryBool(req, "missing", true)
	assert.NoError(t, err)
	assert.True(t, val)

	_, err = ParseQueryBool(req, "bad", false)
	assert.Error(t, err)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(w, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	handler := Chain(RequestIDMiddleware, LoggingMiddleware(logger))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteErrorMessage(w, http.StatusNotFound, "nothing here")
		}))

	req := httptest.NewRequest("GET", "/api/v1/lov/colors", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, "/api/v1/lov/colors", entry.Data["path"])
	assert.Equal(t, "req-7", entry.Data["request_id"])
}

func TestContentTypeMiddleware(t *testing.T) {
	handler := ContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMaxBytesMiddleware(t *testing.T) {
	handler := MaxBytesMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		WriteNoContent(w)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"name":"too long"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func BenchmarkParseJSON(b *testing.B) {
	body, _ := json.Marshal(map[string]string{"name": "test"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest("POST", "/test", bytes.NewBuffer(body))
		var dest map[string]string
		_ = ParseJSON(req, &dest)
	}
}
