package apierr

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/mcoot/playerwatch/internal/model"
	"github.com/mcoot/playerwatch/internal/upstream"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidPlayerName      = "INVALID_PLAYER_NAME"
	CodePlayerNotFound         = "PLAYER_NOT_FOUND"
	CodePlayerNotFoundUpstream = "PLAYER_NOT_FOUND_UPSTREAM"
	CodePlayerAlreadyTracked   = "PLAYER_ALREADY_TRACKED"
	CodeCycleAlreadyRunning    = "CYCLE_ALREADY_RUNNING"
	CodeSchedulerStopped       = "SCHEDULER_STOPPED"
	CodePollingFailed          = "POLLING_FAILED"
	CodeUpstreamError          = "UPSTREAM_ERROR"
	CodeInternalError          = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error is reported with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var upErr *upstream.Error
	switch {
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrInvalidPlayerName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPlayerName, "Player name is required"}}
	case errors.Is(err, model.ErrNoUpstreamMatch):
		return &httpError{http.StatusBadRequest, APIError{CodePlayerNotFoundUpstream, err.Error()}}
	case errors.Is(err, model.ErrDuplicatePlayer):
		return &httpError{http.StatusBadRequest, APIError{CodePlayerAlreadyTracked, err.Error()}}
	case errors.Is(err, model.ErrCycleAlreadyRunning):
		return &httpError{http.StatusInternalServerError, APIError{CodeCycleAlreadyRunning, "A polling cycle is already running"}}
	case errors.Is(err, model.ErrSchedulerStopped):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeSchedulerStopped, "Scheduler has been stopped"}}
	case errors.As(err, &upErr):
		return &httpError{http.StatusBadGateway, APIError{CodeUpstreamError, upErr.Error()}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewPollingFailedError reports a manually triggered cycle that failed
func NewPollingFailedError(message string) error {
	return &httpError{http.StatusInternalServerError, APIError{CodePollingFailed, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
