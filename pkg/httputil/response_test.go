package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"key":"value"}`, w.Body.String())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NotFound("op", "query %q", "x"), http.StatusNotFound},
		{apperrors.InvalidArgument("op", "bad"), http.StatusBadRequest},
		{apperrors.Unauthorized("op", "denied"), http.StatusForbidden},
		{apperrors.ConstraintViolation("op", errors.New("dup"), "duplicate"), http.StatusConflict},
		{apperrors.VersionConflict("op", "stale"), http.StatusConflict},
		{apperrors.Persistence("op", errors.New("disk")), http.StatusInternalServerError},
		{apperrors.Configuration("op", "broken"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperrors.NotFound("op", "x")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestWriteAppError(t *testing.T) {
	t.Run("client error keeps message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteAppError(w, apperrors.NotFound("search.Registry.Lookup", "query %q", "nope"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Error, `query "nope"`)
		assert.Equal(t, "not found", resp.Kind)
	})

	t.Run("persistence error hides cause", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteAppError(w, apperrors.Persistence("op", errors.New("password=hunter2")))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "hunter2")
		assert.Contains(t, w.Body.String(), "Internal Server Error")
	})

	t.Run("configuration error keeps message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteAppError(w, apperrors.Configuration("op", "settings are not persisted"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "settings are not persisted")
	})
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteCreated(w, map[string]int{"id": 123})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "123")
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteSuccess(w, map[string]string{"status": "ok"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestWriteNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteStatusHelpers(t *testing.T) {
	tests := []struct {
		name  string
		write func(http.ResponseWriter, string)
		code  int
	}{
		{"bad request", WriteBadRequest, http.StatusBadRequest},
		{"unauthorized", WriteUnauthorized, http.StatusUnauthorized},
		{"forbidden", WriteForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, "message for "+tt.name)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), "message for "+tt.name)
		})
	}
}
