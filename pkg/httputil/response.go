package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/adminkit/pkg/apperrors"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message})
}

// StatusOf maps a classified error to its HTTP status
func StatusOf(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrInvalidArgument:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusForbidden
	case apperrors.ErrConstraintViolation, apperrors.ErrVersionConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError writes err with the status of its kind. Unclassified and
// persistence errors are reported without their cause.
func WriteAppError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	resp := ErrorResponse{Error: err.Error()}
	if kind := apperrors.KindOf(err); kind != nil {
		resp.Kind = kind.Error()
	}
	if status == http.StatusInternalServerError && !errors.Is(err, apperrors.ErrConfiguration) {
		resp.Error = http.StatusText(status)
	}
	_ = WriteJSON(w, status, resp)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
