// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vaultd-io/vaultd/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

// Error maps a domain error to its status/detail pair. Errors outside the
// taxonomy collapse into a generic 500 so internal causes stay server-side.
func Error(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, "unexpected error")
		return
	}
	Problem(w, status, err.Error())
}

// StatusFor resolves the HTTP status for a domain error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrEmailTaken), errors.Is(err, shared.ErrAlreadyLoggedOut):
		return http.StatusConflict
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnknownEmail), errors.Is(err, shared.ErrCodeMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrCodeAlreadyUsed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
