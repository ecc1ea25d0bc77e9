package api

import (
	"encoding/json"
	"net/http"

	"github.com/Iron-Ham/devboot/internal/errors"
)

// Error codes carried in ErrorResponse.Code.
const (
	CodeNotFound       = "not_found"
	CodeAlreadyRunning = "already_running"
	CodeNotRunning     = "not_running"
	CodeInvalidInput   = "invalid_input"
	CodeLaunchFailed   = "launch_failed"
	CodeInternal       = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error to its HTTP status and code.
func classify(err error) (int, string) {
	var notFound *errors.NotFoundError
	switch {
	case errors.Is(err, errors.ErrProjectNotFound), errors.As(err, &notFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, errors.ErrAlreadyRunning):
		return http.StatusConflict, CodeAlreadyRunning
	case errors.Is(err, errors.ErrNotRunning):
		return http.StatusConflict, CodeNotRunning
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, errors.ErrLaunchFailed):
		return http.StatusUnprocessableEntity, CodeLaunchFailed
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Internal errors that are not marked user-facing
// are reported by status text only.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.IsUserFacing(err) {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// APIError is an error response received by Client.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// Is maps the response code back onto the matching sentinel.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case CodeNotFound:
		return target == errors.ErrProjectNotFound
	case CodeAlreadyRunning:
		return target == errors.ErrAlreadyRunning
	case CodeNotRunning:
		return target == errors.ErrNotRunning
	case CodeInvalidInput:
		return target == errors.ErrInvalidInput
	case CodeLaunchFailed:
		return target == errors.ErrLaunchFailed
	}
	return false
}
